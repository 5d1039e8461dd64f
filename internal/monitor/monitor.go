// Package monitor implements the Monitor (C5): the per-guest coordinator
// that drives static measurement, guest creation, dynamic-module attach,
// client/criteria registration, and criteria re-evaluation on trigger.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dando385/vm-integrity-monitor/internal/config"
	"github.com/dando385/vm-integrity-monitor/internal/debugger"
	"github.com/dando385/vm-integrity-monitor/internal/hypervisor"
	"github.com/dando385/vm-integrity-monitor/internal/ivmerr"
	"github.com/dando385/vm-integrity-monitor/internal/modules"
	"github.com/dando385/vm-integrity-monitor/internal/netproxy"
	"github.com/dando385/vm-integrity-monitor/internal/telemetry"
	"github.com/dando385/vm-integrity-monitor/internal/watcher"
	"github.com/dando385/vm-integrity-monitor/internal/xmlguest"
)

// DebuggerFactory spawns the Debugger Channel a Watcher will own. Injected
// so tests can hand the Monitor a debugger.Fake instead of a real gdb
// subprocess.
type DebuggerFactory func(ctx context.Context) (debugger.Channel, error)

// Monitor coordinates one guest's full lifecycle. Safe for concurrent use:
// the client/criteria maps are guarded by mu, matching the single
// monitor-local mutex spec.md §5 requires.
type Monitor struct {
	name   string
	doc    *config.Document
	domain config.Domain

	hv        hypervisor.Hypervisor
	proxy     netproxy.NetworkProxy
	hashSets  config.HashSets
	newDbg    DebuggerFactory
	log       zerolog.Logger
	metrics   *telemetry.Metrics

	mu       sync.Mutex
	state    State
	static   map[string]modules.Module
	dynamic  map[string]modules.Module
	clients  map[string][]string // criteria file path -> client IPs
	criteria map[string]config.Criteria

	watcher    *watcher.Watcher
	cancelRun  context.CancelFunc
	runErr     error
	runDone    chan struct{}
}

// New constructs a Monitor for guest name. Start must be called to begin
// its asynchronous lifecycle.
func New(
	name string,
	doc *config.Document,
	domain config.Domain,
	hv hypervisor.Hypervisor,
	proxy netproxy.NetworkProxy,
	hashSets config.HashSets,
	newDbg DebuggerFactory,
	log zerolog.Logger,
	metrics *telemetry.Metrics,
) *Monitor {
	return &Monitor{
		name:     name,
		doc:      doc,
		domain:   domain,
		hv:       hv,
		proxy:    proxy,
		hashSets: hashSets,
		newDbg:   newDbg,
		log:      log.With().Str("component", "monitor").Str("guest", name).Logger(),
		metrics:  metrics,
		state:    Initializing,
		static:   map[string]modules.Module{},
		dynamic:  map[string]modules.Module{},
		clients:  map[string][]string{},
		criteria: map[string]config.Criteria{},
		runDone:  make(chan struct{}),
	}
}

// StartupError returns the error that caused startup to fail and the
// Monitor to transition directly to Destroyed, or nil if startup succeeded
// (or is still in progress).
func (m *Monitor) StartupError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runErr
}

// State returns the Monitor's current lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Start runs the Monitor's startup sequence asynchronously: static
// measurement, guest creation, a configured pause, dynamic-module attach,
// and launching the Watcher. The control facade's Start call returns as
// soon as this goroutine is launched, per spec.md §4.5.
func (m *Monitor) Start(ctx context.Context) {
	go m.run(ctx)
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.runDone)

	runCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancelRun = cancel
	m.mu.Unlock()

	if err := m.start(runCtx); err != nil {
		m.log.Error().Err(err).Msg("monitor startup failed")
		m.mu.Lock()
		m.runErr = err
		m.state = Destroyed
		m.mu.Unlock()
	}
}

func (m *Monitor) start(ctx context.Context) error {
	m.setState(RegisteringStatic)

	descriptorXML, err := m.hv.Describe(ctx, m.name)
	if err != nil {
		return fmt.Errorf("monitor: describe guest before launch: %w", err)
	}
	descriptor, err := xmlguest.Parse(descriptorXML)
	if err != nil {
		return fmt.Errorf("monitor: parse guest descriptor: %w", err)
	}

	for _, name := range m.doc.Monitor.Static {
		mod, err := modules.Construct(name, modules.Deps{
			ModuleConfig: m.doc.ModuleConfig(name),
			Descriptor:   descriptor,
			HashSets:     m.hashSets,
		})
		if err != nil {
			return fmt.Errorf("monitor: construct static module %s: %w", name, err)
		}
		if _, err := mod.Initialize(ctx, nil); err != nil {
			return fmt.Errorf("monitor: initialize static module %s: %w", name, err)
		}
		m.mu.Lock()
		m.static[name] = mod
		m.mu.Unlock()
	}

	if err := m.hv.Create(ctx, m.name); err != nil {
		return fmt.Errorf("monitor: create guest: %w", err)
	}
	m.setState(GuestCreatedPausing)

	select {
	case <-time.After(time.Duration(m.doc.Monitor.PauseSeconds) * time.Second):
	case <-ctx.Done():
		return ctx.Err()
	}

	for _, name := range m.doc.Monitor.Dynamic {
		mod, err := modules.Construct(name, modules.Deps{
			ModuleConfig: m.doc.ModuleConfig(name),
			Descriptor:   descriptor,
			HashSets:     m.hashSets,
		})
		if err != nil {
			return fmt.Errorf("monitor: construct dynamic module %s: %w", name, err)
		}
		m.mu.Lock()
		m.dynamic[name] = mod
		m.mu.Unlock()
	}

	dbg, err := m.newDbg(ctx)
	if err != nil {
		return fmt.Errorf("monitor: open debugger channel: %w", err)
	}

	w := watcher.New(dbg, m, m.log, m.metrics)
	if err := w.Attach(m.domain.IP, m.domain.Port, m.kernelImage(descriptor), m.doc.Watcher.Macros); err != nil {
		return fmt.Errorf("monitor: attach watcher: %w", err)
	}

	m.mu.Lock()
	dynamicList := make([]modules.Module, 0, len(m.dynamic))
	for _, mod := range m.dynamic {
		dynamicList = append(dynamicList, mod)
	}
	m.mu.Unlock()

	if err := w.Install(ctx, dynamicList); err != nil {
		return fmt.Errorf("monitor: install watchpoints: %w", err)
	}

	m.mu.Lock()
	m.watcher = w
	m.mu.Unlock()

	m.setState(Running)

	go func() {
		if err := w.Run(ctx); err != nil {
			m.log.Error().Err(err).Msg("watcher terminated")
		}
		m.setState(Destroyed)
	}()

	return nil
}

// kernelImage resolves the guest's kernel image path from its descriptor,
// the same /domain/os/kernel/text() selector the original project's
// Watcher.__init__ used before appending ".gdb".
func (m *Monitor) kernelImage(descriptor *xmlguest.Descriptor) string {
	path, err := descriptor.SelectOne("/domain/os/kernel/text()")
	if err != nil {
		return ""
	}
	return path
}

// Register resolves clientIP's criteria file and, if its criteria key is
// already accepted, appends the client idempotently. Otherwise it parses
// and checks the criteria against every static and dynamic module; on
// success both maps gain an entry, on failure nothing changes.
func (m *Monitor) Register(ctx context.Context, clientIP string) (bool, error) {
	path, ok := m.doc.CriteriaPath(clientIP)
	if !ok {
		return false, fmt.Errorf("monitor: %w: %s", ivmerr.ErrUnknownClient, clientIP)
	}

	m.mu.Lock()
	if _, exists := m.criteria[path]; exists {
		if !containsString(m.clients[path], clientIP) {
			m.clients[path] = append(m.clients[path], clientIP)
		}
		m.mu.Unlock()
		return true, nil
	}
	m.mu.Unlock()

	crt, err := config.LoadCriteria(path)
	if err != nil {
		return false, fmt.Errorf("monitor: load criteria %s: %w", path, err)
	}

	if !m.checkAll(crt) {
		return false, nil
	}

	m.mu.Lock()
	m.clients[path] = []string{clientIP}
	m.criteria[path] = crt
	m.mu.Unlock()
	return true, nil
}

// Unregister removes clientIP from its criteria key's client list. If the
// list becomes empty, both map entries for the key are removed too.
func (m *Monitor) Unregister(clientIP string) (bool, error) {
	path, ok := m.doc.CriteriaPath(clientIP)
	if !ok {
		return false, fmt.Errorf("monitor: %w: %s", ivmerr.ErrUnknownClient, clientIP)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	clients, exists := m.clients[path]
	if !exists {
		return false, nil
	}
	idx := indexOfString(clients, clientIP)
	if idx < 0 {
		return false, nil
	}

	clients = append(clients[:idx], clients[idx+1:]...)
	if len(clients) == 0 {
		delete(m.clients, path)
		delete(m.criteria, path)
	} else {
		m.clients[path] = clients
	}
	return true, nil
}

// checkAll evaluates crt against every static and dynamic module.
func (m *Monitor) checkAll(crt config.Criteria) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mod := range m.static {
		if !mod.Check(crt) {
			return false
		}
	}
	for _, mod := range m.dynamic {
		if !mod.Check(crt) {
			return false
		}
	}
	return true
}

// OnModuleChanged implements watcher.Trigger. For every registered criteria
// key, if moduleName's dynamic module now fails Check against it, the key
// is dropped from both maps and every client under it is severed via the
// network-proxy collaborator.
func (m *Monitor) OnModuleChanged(ctx context.Context, moduleName string) error {
	m.mu.Lock()
	mod, ok := m.dynamic[moduleName]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("monitor: %w: %s", ivmerr.ErrUnknownModule, moduleName)
	}

	var toKill []struct {
		path string
		ips  []string
	}
	for path, crt := range m.criteria {
		if !mod.Check(crt) {
			toKill = append(toKill, struct {
				path string
				ips  []string
			}{path, m.clients[path]})
			delete(m.criteria, path)
			delete(m.clients, path)
		}
	}
	m.mu.Unlock()

	if m.metrics != nil {
		result := "pass"
		if len(toKill) > 0 {
			result = "fail"
		}
		m.metrics.TriggerEvaluations.WithLabelValues(moduleName, result).Inc()
	}

	for _, kill := range toKill {
		for _, ip := range kill.ips {
			if err := m.proxy.Kill(ctx, ip, m.domain.IP); err != nil {
				m.log.Error().Err(err).Str("client", ip).Str("criteria", kill.path).Msg("failed to sever client session")
			}
		}
	}
	return nil
}

// Destroy asks the hypervisor to destroy the guest, severs every remaining
// client session, and transitions to Destroyed.
func (m *Monitor) Destroy(ctx context.Context) error {
	if err := m.hv.Destroy(ctx, m.name); err != nil {
		return fmt.Errorf("monitor: destroy guest: %w", err)
	}

	m.mu.Lock()
	clients := m.clients
	m.clients = map[string][]string{}
	m.criteria = map[string]config.Criteria{}
	cancel := m.cancelRun
	m.mu.Unlock()

	for _, ips := range clients {
		for _, ip := range ips {
			if err := m.proxy.Kill(ctx, ip, m.domain.IP); err != nil {
				m.log.Error().Err(err).Str("client", ip).Msg("failed to sever client session on destroy")
			}
		}
	}

	if cancel != nil {
		cancel()
	}
	m.setState(Destroyed)
	return nil
}

// Detach issues an interrupt on the Watcher's Debugger Channel; the
// Watcher will observe the interrupt marker and detach cleanly.
func (m *Monitor) Detach() error {
	m.mu.Lock()
	w := m.watcher
	m.mu.Unlock()
	if w == nil {
		return fmt.Errorf("monitor: %w", ivmerr.ErrNotRunning)
	}
	return w.Detach()
}

// Status reports the Monitor's current state and registrations, mirroring
// the original project's Monitor.status dump.
type Status struct {
	Name    string
	State   State
	Clients map[string][]string
	Static  []string
	Dynamic []string
	Latency telemetry.DispatchLatencyTail
}

func (m *Monitor) Status() Status {
	m.mu.Lock()
	clients := make(map[string][]string, len(m.clients))
	for k, v := range m.clients {
		cp := make([]string, len(v))
		copy(cp, v)
		clients[k] = cp
	}
	w := m.watcher
	st := Status{
		Name:    m.name,
		State:   m.state,
		Clients: clients,
		Static:  moduleNames(m.static),
		Dynamic: moduleNames(m.dynamic),
	}
	m.mu.Unlock()

	if w != nil {
		st.Latency = w.LatencyTail()
	}
	return st
}

func moduleNames(mods map[string]modules.Module) []string {
	names := make([]string, 0, len(mods))
	for name := range mods {
		names = append(names, name)
	}
	return names
}

func containsString(ss []string, s string) bool {
	return indexOfString(ss, s) >= 0
}

func indexOfString(ss []string, s string) int {
	for i, v := range ss {
		if v == s {
			return i
		}
	}
	return -1
}
