package monitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dando385/vm-integrity-monitor/internal/config"
	"github.com/dando385/vm-integrity-monitor/internal/debugger"
	"github.com/dando385/vm-integrity-monitor/internal/hypervisor"
	"github.com/dando385/vm-integrity-monitor/internal/modules"
	"github.com/dando385/vm-integrity-monitor/internal/netproxy"
)

const testDescriptorXML = `<domain>
  <name>g1</name>
  <os><kernel>/boot/vmlinuz</kernel></os>
</domain>`

func newTestMonitor(t *testing.T, criteriaPath string) (*Monitor, *netproxy.Fake) {
	t.Helper()

	hv := hypervisor.NewFake()
	hv.SeedXML("g1", []byte(testDescriptorXML))
	proxy := netproxy.NewFake()

	doc := &config.Document{
		Monitor: config.MonitorSection{Static: nil, Dynamic: nil, PauseSeconds: 0},
		Clients: map[string]string{"10.0.0.5": criteriaPath},
	}

	newDbg := func(context.Context) (debugger.Channel, error) {
		return debugger.NewFake(), nil
	}

	m := New("g1", doc, config.Domain{Name: "g1", IP: "10.0.0.1", Port: "1234"}, hv, proxy, config.HashSets{}, newDbg, zerolog.Nop(), nil)
	return m, proxy
}

func writeCriteria(t *testing.T, dir string, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "client.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write criteria: %v", err)
	}
	return path
}

func TestRegisterIdempotence(t *testing.T) {
	dir := t.TempDir()
	path := writeCriteria(t, dir, "{}\n")
	m, _ := newTestMonitor(t, path)

	ok1, err := m.Register(context.Background(), "10.0.0.5")
	if err != nil || !ok1 {
		t.Fatalf("first register: ok=%v err=%v", ok1, err)
	}
	ok2, err := m.Register(context.Background(), "10.0.0.5")
	if err != nil || !ok2 {
		t.Fatalf("second register: ok=%v err=%v", ok2, err)
	}

	m.mu.Lock()
	clients := m.clients[path]
	m.mu.Unlock()
	if len(clients) != 1 {
		t.Fatalf("expected exactly one client entry, got %v", clients)
	}
}

func TestRegisterUnregisterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := writeCriteria(t, dir, "{}\n")
	m, _ := newTestMonitor(t, path)

	if ok, err := m.Register(context.Background(), "10.0.0.5"); err != nil || !ok {
		t.Fatalf("register: ok=%v err=%v", ok, err)
	}
	if ok, err := m.Unregister("10.0.0.5"); err != nil || !ok {
		t.Fatalf("unregister: ok=%v err=%v", ok, err)
	}

	m.mu.Lock()
	_, hasClients := m.clients[path]
	_, hasCriteria := m.criteria[path]
	m.mu.Unlock()
	if hasClients || hasCriteria {
		t.Fatal("expected both maps restored to empty after round trip")
	}
}

func TestRegistrySymmetryAfterTrigger(t *testing.T) {
	dir := t.TempDir()
	path := writeCriteria(t, dir, "Heartbeat:\n  ok: \"true\"\n")
	m, proxy := newTestMonitor(t, path)

	failing := &alwaysFailModule{name: "Heartbeat"}
	m.mu.Lock()
	m.dynamic["Heartbeat"] = failing
	m.mu.Unlock()

	// This stub always fails Check, so simulate a registration that was
	// accepted while the module still passed, then exercise the trigger
	// path once it degrades.
	m.mu.Lock()
	crt, _ := config.LoadCriteria(path)
	m.clients[path] = []string{"10.0.0.5"}
	m.criteria[path] = crt
	m.mu.Unlock()

	if err := m.OnModuleChanged(context.Background(), "Heartbeat"); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	m.mu.Lock()
	_, hasClients := m.clients[path]
	_, hasCriteria := m.criteria[path]
	m.mu.Unlock()
	if hasClients || hasCriteria {
		t.Fatal("P1/P5: expected criteria key removed from both maps after failing trigger")
	}

	kills := proxy.Kills()
	if len(kills) != 1 || kills[0].ClientIP != "10.0.0.5" {
		t.Fatalf("P5: expected exactly one kill call for the formerly-registered client, got %v", kills)
	}
}

// alwaysFailModule is a modules.Module stub whose Check always returns
// false, used to exercise the trigger/enforcement path without a real gdb
// session.
type alwaysFailModule struct{ name string }

func (a *alwaysFailModule) Name() string      { return a.name }
func (a *alwaysFailModule) Kind() modules.Kind { return modules.KindDynamic }
func (a *alwaysFailModule) Initialize(context.Context, debugger.Channel) ([]string, error) {
	return nil, nil
}
func (a *alwaysFailModule) OnEvent(context.Context, debugger.Channel) (bool, error) {
	return true, nil
}
func (a *alwaysFailModule) Check(config.Criteria) bool { return false }
