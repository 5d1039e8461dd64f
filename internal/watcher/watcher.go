// Package watcher implements the Watcher (C4): the background event loop
// that owns a guest's Debugger Channel, installs every dynamic module's
// watchpoints, and routes each notification line to the module that owns
// the watchpoint descriptor it names.
package watcher

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dando385/vm-integrity-monitor/internal/debugger"
	"github.com/dando385/vm-integrity-monitor/internal/ivmerr"
	"github.com/dando385/vm-integrity-monitor/internal/modules"
	"github.com/dando385/vm-integrity-monitor/internal/telemetry"
)

// interruptMarker is the line gdb prints when it receives SIGINT and halts
// the guest at a prompt. It is the out-of-band signal the Watcher uses to
// recognize an operator-requested Detach rather than a real watchpoint hit.
const interruptMarker = "Program received signal SIGINT"

// Trigger is the Monitor's callback surface, handed to the Watcher as a
// non-owning reference (spec.md §9: an explicit interface replaces the
// original's bound-method back-reference to avoid the cyclic ownership it
// implies). OnModuleChanged is invoked after a module reports a state
// change, before the Watcher resumes the guest.
type Trigger interface {
	OnModuleChanged(ctx context.Context, moduleName string) error
}

// Watcher is a single guest's event loop. It is not safe for concurrent use
// beyond the one goroutine that calls Run and the one that may call Detach.
type Watcher struct {
	dbg     debugger.Channel
	trigger Trigger
	log     zerolog.Logger
	metrics *telemetry.Metrics

	// watchpoints maps a watchpoint descriptor (as returned by a module's
	// Initialize) to the module that owns it. Install enforces that
	// descriptors are pairwise distinct across one guest's modules.
	watchpoints map[string]modules.Module

	mu       sync.Mutex
	detached bool

	latencyMu      sync.Mutex
	latencySamples []time.Duration
}

// maxLatencySamples bounds the in-memory dispatch-latency window a Status
// query summarizes; older samples are dropped so a long-running guest's
// tail latency reflects recent behavior, not its entire history.
const maxLatencySamples = 256

// New builds a Watcher over dbg. metrics may be nil, in which case
// instrumentation is skipped.
func New(dbg debugger.Channel, trigger Trigger, log zerolog.Logger, metrics *telemetry.Metrics) *Watcher {
	return &Watcher{
		dbg:         dbg,
		trigger:     trigger,
		log:         log.With().Str("component", "watcher").Logger(),
		metrics:     metrics,
		watchpoints: map[string]modules.Module{},
	}
}

// Attach connects the Debugger Channel to the guest's extended-remote
// debugger port (this halts the guest), loads its kernel symbols, and
// sources the configured macro file — spec.md §4.4 step 1.
func (w *Watcher) Attach(host, port, kernelImage, macrosPath string) error {
	if _, err := w.dbg.Command(fmt.Sprintf("target extended-remote %s:%s", host, port), 3); err != nil {
		return fmt.Errorf("watcher: connect to guest debugger port: %w", err)
	}
	if _, err := w.dbg.Command("file "+kernelImage+".gdb", 1); err != nil {
		return fmt.Errorf("watcher: load kernel symbols: %w", err)
	}
	if _, err := w.dbg.Command("source "+macrosPath, 0); err != nil {
		return fmt.Errorf("watcher: source macros: %w", err)
	}
	return nil
}

// Install initializes every dynamic module in order, collecting the
// watchpoint descriptors each returns. A module that hands back a
// descriptor already owned by an earlier module is a configuration error:
// the Watcher could never route its notifications unambiguously.
func (w *Watcher) Install(ctx context.Context, dynamicModules []modules.Module) error {
	for _, mod := range dynamicModules {
		descriptors, err := mod.Initialize(ctx, w.dbg)
		if err != nil {
			return fmt.Errorf("watcher: initialize %s: %w", mod.Name(), err)
		}
		for _, d := range descriptors {
			if _, exists := w.watchpoints[d]; exists {
				return fmt.Errorf("watcher: %s: %w: %q", mod.Name(), ivmerr.ErrDuplicateWatchpoint, d)
			}
			w.watchpoints[d] = mod
		}
	}
	return nil
}

// Run drives the event loop until the Debugger Channel fails, an operator
// interrupt is observed, or ctx is canceled. It always returns a non-nil
// error except on a clean interrupt-triggered exit.
//
// Within one iteration, OnEvent and the subsequent trigger call complete
// before the next ReadLine is issued — watchpoint processing is strictly
// serialized per guest (spec.md §5, ordering guarantees).
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.resume(); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := w.dbg.ReadLine()
		if err != nil {
			return fmt.Errorf("watcher: read line: %w", err)
		}

		if strings.Contains(line, interruptMarker) {
			return w.handleInterrupt()
		}

		mod, descriptor := w.matchWatchpoint(line)
		if mod == nil {
			continue
		}

		if err := w.dispatch(ctx, mod, descriptor); err != nil {
			return err
		}
	}
}

// matchWatchpoint finds the module whose watchpoint descriptor appears in
// line. Unmatched lines (diagnostics, acknowledgements) are dropped
// silently, per spec.md §4.4.
func (w *Watcher) matchWatchpoint(line string) (modules.Module, string) {
	for descriptor, mod := range w.watchpoints {
		if strings.Contains(line, descriptor) {
			return mod, descriptor
		}
	}
	return nil, ""
}

func (w *Watcher) dispatch(ctx context.Context, mod modules.Module, descriptor string) error {
	start := time.Now()
	changed, err := mod.OnEvent(ctx, w.dbg)
	if err != nil {
		// on_event errors are logged and swallowed (spec.md §7): one bad
		// event must not kill the Watcher.
		w.log.Error().Err(err).Str("module", mod.Name()).Str("watchpoint", descriptor).Msg("module event handling failed")
		return w.resume()
	}

	if w.metrics != nil {
		w.metrics.WatchpointEvents.WithLabelValues(mod.Name()).Inc()
	}

	if changed {
		if err := w.trigger.OnModuleChanged(ctx, mod.Name()); err != nil {
			w.log.Error().Err(err).Str("module", mod.Name()).Msg("trigger evaluation failed")
		}
	}

	elapsed := time.Since(start)
	if w.metrics != nil {
		w.metrics.DispatchLatency.WithLabelValues(mod.Name()).Observe(elapsed.Seconds())
	}
	w.recordLatency(elapsed)

	return w.resume()
}

func (w *Watcher) resume() error {
	if _, err := w.dbg.Command("continue", 1); err != nil {
		return fmt.Errorf("watcher: resume guest: %w", err)
	}
	return nil
}

func (w *Watcher) handleInterrupt() error {
	w.mu.Lock()
	w.detached = true
	w.mu.Unlock()

	if _, err := w.dbg.Command("detach", 0); err != nil {
		return fmt.Errorf("watcher: detach: %w", err)
	}
	w.log.Info().Msg("watcher detached on operator interrupt")
	return nil
}

// Detach issues an interrupt on the owned Debugger Channel; the running
// Run loop will observe the interrupt marker on its next ReadLine and exit
// cleanly. Safe to call from a goroutine other than the one running Run.
func (w *Watcher) Detach() error {
	return w.dbg.Interrupt()
}

// Detached reports whether the Watcher has already processed an interrupt.
func (w *Watcher) Detached() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.detached
}

func (w *Watcher) recordLatency(d time.Duration) {
	w.latencyMu.Lock()
	defer w.latencyMu.Unlock()
	w.latencySamples = append(w.latencySamples, d)
	if over := len(w.latencySamples) - maxLatencySamples; over > 0 {
		w.latencySamples = w.latencySamples[over:]
	}
}

// LatencyTail summarizes the most recent dispatch-latency samples for a
// synchronous status query; the Prometheus histogram remains the source of
// truth for scraping and alerting.
func (w *Watcher) LatencyTail() telemetry.DispatchLatencyTail {
	w.latencyMu.Lock()
	defer w.latencyMu.Unlock()
	return telemetry.SummarizeDispatchLatency(w.latencySamples)
}
