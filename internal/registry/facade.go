// Package registry implements the Control Facade (C6): the process-wide
// entry point that starts, stops, detaches, and queries per-guest
// Monitors, and routes client registration calls to the right one.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dando385/vm-integrity-monitor/internal/config"
	"github.com/dando385/vm-integrity-monitor/internal/debugger"
	"github.com/dando385/vm-integrity-monitor/internal/hypervisor"
	"github.com/dando385/vm-integrity-monitor/internal/ivmerr"
	"github.com/dando385/vm-integrity-monitor/internal/monitor"
	"github.com/dando385/vm-integrity-monitor/internal/netproxy"
	"github.com/dando385/vm-integrity-monitor/internal/telemetry"
)

// Registry maintains name->Monitor and guest-IP->Monitor, the one piece of
// process-wide shared state that crosses Monitor boundaries (spec.md §5).
type Registry struct {
	doc      *config.Document
	hv       hypervisor.Hypervisor
	proxy    netproxy.NetworkProxy
	hashSets config.HashSets
	newDbg   monitor.DebuggerFactory
	log      zerolog.Logger
	metrics  *telemetry.Metrics

	mu       sync.Mutex
	byName   map[string]*monitor.Monitor
	byGuest  map[string]*monitor.Monitor
}

// New builds a Registry over the given configuration and collaborators.
func New(
	doc *config.Document,
	hv hypervisor.Hypervisor,
	proxy netproxy.NetworkProxy,
	hashSets config.HashSets,
	newDbg monitor.DebuggerFactory,
	log zerolog.Logger,
	metrics *telemetry.Metrics,
) *Registry {
	return &Registry{
		doc:      doc,
		hv:       hv,
		proxy:    proxy,
		hashSets: hashSets,
		newDbg:   newDbg,
		log:      log.With().Str("component", "registry").Logger(),
		metrics:  metrics,
		byName:   map[string]*monitor.Monitor{},
		byGuest:  map[string]*monitor.Monitor{},
	}
}

// Start begins managing guestName. Rejects a duplicate start for an
// already-managed name, and rejects starting a guest the hypervisor
// reports as already active outside this registry's management.
func (r *Registry) Start(ctx context.Context, guestName string) error {
	r.mu.Lock()
	if _, managed := r.byName[guestName]; managed {
		r.mu.Unlock()
		return fmt.Errorf("registry: %s: %w", guestName, ivmerr.ErrAlreadyActive)
	}
	r.mu.Unlock()

	domain, err := r.doc.Domain(guestName)
	if err != nil {
		return fmt.Errorf("registry: %w: %s: %v", ivmerr.ErrUnknownGuest, guestName, err)
	}

	exists, active, err := r.hv.Lookup(ctx, guestName)
	if err != nil {
		return fmt.Errorf("registry: lookup %s: %w", guestName, err)
	}
	if exists && active {
		return fmt.Errorf("registry: %s: %w", guestName, ivmerr.ErrRunningUnmanaged)
	}

	m := monitor.New(guestName, r.doc, domain, r.hv, r.proxy, r.hashSets, r.newDbg, r.log, r.metrics)

	r.mu.Lock()
	r.byName[guestName] = m
	r.byGuest[domain.IP] = m
	r.mu.Unlock()

	m.Start(ctx)
	return nil
}

// Stop destroys guestName's guest. Rejects any guest this registry does not
// manage: with ErrRunningUnmanaged if the hypervisor reports it active, with
// ErrNotRunning otherwise.
func (r *Registry) Stop(ctx context.Context, guestName string) error {
	m, managed := r.lookup(guestName)
	if !managed {
		exists, active, err := r.hv.Lookup(ctx, guestName)
		if err != nil {
			return fmt.Errorf("registry: lookup %s: %w", guestName, err)
		}
		if !exists || !active {
			return fmt.Errorf("registry: %s: %w", guestName, ivmerr.ErrNotRunning)
		}
		return fmt.Errorf("registry: %s: %w", guestName, ivmerr.ErrRunningUnmanaged)
	}

	if err := m.Destroy(ctx); err != nil {
		return fmt.Errorf("registry: stop %s: %w", guestName, err)
	}
	r.remove(guestName)
	return nil
}

// ForceStop destroys guestName's guest unconditionally, even if it was
// never managed by this registry (the original project's force_stop,
// grounded on original_source/util/vmctl.py's export_force_stop).
func (r *Registry) ForceStop(ctx context.Context, guestName string) error {
	m, managed := r.lookup(guestName)
	if managed {
		if err := m.Destroy(ctx); err != nil {
			return fmt.Errorf("registry: force-stop %s: %w", guestName, err)
		}
		r.remove(guestName)
		return nil
	}

	exists, active, err := r.hv.Lookup(ctx, guestName)
	if err != nil {
		return fmt.Errorf("registry: lookup %s: %w", guestName, err)
	}
	if !exists || !active {
		return fmt.Errorf("registry: %s: %w", guestName, ivmerr.ErrNotRunning)
	}
	return r.hv.Destroy(ctx, guestName)
}

// Detach issues an interrupt on guestName's Watcher, keyed on guest name
// (spec.md §9's resolved Open Question).
func (r *Registry) Detach(guestName string) error {
	m, managed := r.lookup(guestName)
	if !managed {
		return fmt.Errorf("registry: %s: %w", guestName, ivmerr.ErrNotManaged)
	}
	return m.Detach()
}

// Status reports the current status of guestName, or an error if it isn't
// managed by this registry.
func (r *Registry) Status(guestName string) (monitor.Status, error) {
	m, managed := r.lookup(guestName)
	if !managed {
		return monitor.Status{}, fmt.Errorf("registry: %s: %w", guestName, ivmerr.ErrNotManaged)
	}
	return m.Status(), nil
}

// Connect registers a client against the Monitor managing domIP, returning
// whether the client's criteria are satisfied.
func (r *Registry) Connect(ctx context.Context, clientIP, domIP string) (bool, error) {
	m, ok := r.lookupByGuest(domIP)
	if !ok {
		return false, fmt.Errorf("registry: %s: %w", domIP, ivmerr.ErrNotManaged)
	}
	return m.Register(ctx, clientIP)
}

// Disconnect unregisters a client from the Monitor managing domIP.
func (r *Registry) Disconnect(clientIP, domIP string) (bool, error) {
	m, ok := r.lookupByGuest(domIP)
	if !ok {
		return false, fmt.Errorf("registry: %s: %w", domIP, ivmerr.ErrNotManaged)
	}
	return m.Unregister(clientIP)
}

// Statuses reports every managed guest's current status, fetched
// concurrently since each Monitor's Status call takes its own lock
// independently of the registry's (mirroring the teacher's errgroup-based
// concurrent provider poll, now fanning out over guests instead of RPC
// providers). The natural backing for a fleet-wide status view.
func (r *Registry) Statuses(ctx context.Context) (map[string]monitor.Status, error) {
	r.mu.Lock()
	monitors := make(map[string]*monitor.Monitor, len(r.byName))
	for name, m := range r.byName {
		monitors[name] = m
	}
	r.mu.Unlock()

	var mu sync.Mutex
	out := make(map[string]monitor.Status, len(monitors))

	g, _ := errgroup.WithContext(ctx)
	for name, m := range monitors {
		name, m := name, m
		g.Go(func() error {
			st := m.Status()
			mu.Lock()
			out[name] = st
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Registry) lookup(guestName string) (*monitor.Monitor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byName[guestName]
	return m, ok
}

func (r *Registry) lookupByGuest(domIP string) (*monitor.Monitor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byGuest[domIP]
	return m, ok
}

func (r *Registry) remove(guestName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.byName[guestName]; ok {
		for ip, mm := range r.byGuest {
			if mm == m {
				delete(r.byGuest, ip)
			}
		}
	}
	delete(r.byName, guestName)
}

// NewDebuggerFactory builds the default production DebuggerFactory:
// spawning "gdb -q" over the guest's extended-remote connection.
func NewDebuggerFactory() monitor.DebuggerFactory {
	return func(ctx context.Context) (debugger.Channel, error) {
		return debugger.NewProcess(ctx, "gdb", []string{"-q"})
	}
}
