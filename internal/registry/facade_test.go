package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dando385/vm-integrity-monitor/internal/config"
	"github.com/dando385/vm-integrity-monitor/internal/debugger"
	"github.com/dando385/vm-integrity-monitor/internal/hypervisor"
	"github.com/dando385/vm-integrity-monitor/internal/ivmerr"
	"github.com/dando385/vm-integrity-monitor/internal/netproxy"
)

const g1DescriptorXML = `<domain>
  <name>g1</name>
  <os><kernel>/boot/vmlinuz</kernel></os>
</domain>`

func newTestRegistry() (*Registry, *hypervisor.Fake) {
	hv := hypervisor.NewFake()
	hv.SeedXML("g1", []byte(g1DescriptorXML))
	proxy := netproxy.NewFake()

	doc := &config.Document{
		Monitor: config.MonitorSection{},
		Domains: map[string]string{"g1": "10.0.0.1 1234"},
	}

	newDbg := func(context.Context) (debugger.Channel, error) {
		return debugger.NewFake(), nil
	}

	return New(doc, hv, proxy, config.HashSets{}, newDbg, zerolog.Nop(), nil), hv
}

func TestStartRejectsDuplicate(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()

	if err := r.Start(ctx, "g1"); err != nil {
		t.Fatalf("first start: %v", err)
	}
	err := r.Start(ctx, "g1")
	if !errors.Is(err, ivmerr.ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}
}

func TestStartRejectsUnmanagedRunningGuest(t *testing.T) {
	r, hv := newTestRegistry()
	hv.Seed("g1", true)

	err := r.Start(context.Background(), "g1")
	if !errors.Is(err, ivmerr.ErrRunningUnmanaged) {
		t.Fatalf("expected ErrRunningUnmanaged, got %v", err)
	}
}

func TestStatusUnknownGuestIsNotManaged(t *testing.T) {
	r, _ := newTestRegistry()
	_, err := r.Status("g1")
	if !errors.Is(err, ivmerr.ErrNotManaged) {
		t.Fatalf("expected ErrNotManaged, got %v", err)
	}
}

func TestDetachUnmanagedGuestFails(t *testing.T) {
	r, _ := newTestRegistry()
	err := r.Detach("g1")
	if !errors.Is(err, ivmerr.ErrNotManaged) {
		t.Fatalf("expected ErrNotManaged, got %v", err)
	}
}

func TestConnectUnmanagedGuestFails(t *testing.T) {
	r, _ := newTestRegistry()
	_, err := r.Connect(context.Background(), "10.0.0.5", "10.0.0.1")
	if !errors.Is(err, ivmerr.ErrNotManaged) {
		t.Fatalf("expected ErrNotManaged, got %v", err)
	}
}

func TestStatusesReturnsEveryManagedGuest(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()

	if err := r.Start(ctx, "g1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	statuses, err := r.Statuses(ctx)
	if err != nil {
		t.Fatalf("statuses: %v", err)
	}
	st, ok := statuses["g1"]
	if !ok {
		t.Fatal("expected g1 in fleet status")
	}
	if st.Name != "g1" {
		t.Fatalf("expected status name g1, got %q", st.Name)
	}
}
