package modules

import (
	"context"
	"fmt"

	"github.com/dando385/vm-integrity-monitor/internal/config"
	"github.com/dando385/vm-integrity-monitor/internal/debugger"
)

// Heartbeat watches a periodically-updated kernel counter purely to exercise
// the watchpoint → OnEvent → dispatch-latency telemetry path end to end; it
// never affects criteria. OnEvent always reports no state change, so a
// heartbeat hit never reaches the Monitor's trigger. Check always returns
// true.
type Heartbeat struct {
	watchExpr string
}

func newHeartbeat(deps Deps) (Module, error) {
	watchExpr := deps.ModuleConfig["watchpoint"]
	if watchExpr == "" {
		watchExpr = "printk_ratelimit_state.interval"
	}
	return &Heartbeat{watchExpr: watchExpr}, nil
}

func (m *Heartbeat) Name() string { return "Heartbeat" }
func (m *Heartbeat) Kind() Kind   { return KindDynamic }

func (m *Heartbeat) Initialize(_ context.Context, dbg debugger.Channel) ([]string, error) {
	watch, err := dbg.Command("watch "+m.watchExpr, 1)
	if err != nil {
		return nil, fmt.Errorf("heartbeat: install watchpoint on %s: %w", m.watchExpr, err)
	}
	return []string{gdbValue(watch[0])}, nil
}

func (m *Heartbeat) OnEvent(_ context.Context, dbg debugger.Channel) (bool, error) {
	for i := 0; i < preambleLines; i++ {
		if _, err := dbg.ReadLine(); err != nil {
			return false, fmt.Errorf("heartbeat: drain event preamble: %w", err)
		}
	}
	return false, nil
}

func (m *Heartbeat) Check(config.Criteria) bool {
	return true
}
