package modules

import (
	"context"
	"fmt"

	"github.com/dando385/vm-integrity-monitor/internal/config"
	"github.com/dando385/vm-integrity-monitor/internal/debugger"
)

// EnforcingFlag is the dynamic module watching the guest kernel's
// security-policy enforcing flag (SELinux's "enforcing" sysctl, in the
// original project). It installs a watchpoint on the symbol holding the
// flag and toggles its cached value on every hit — the debugger reports
// only that the watched word changed, not the new value, so the module
// tracks state by flipping "0"/"1".
type EnforcingFlag struct {
	watchExpr string // kernel symbol to watch
	queryCmd  string // debugger macro that prints the current value

	enforcing string // cached "0" or "1"
}

func newEnforcingFlag(deps Deps) (Module, error) {
	watchExpr := deps.ModuleConfig["watchpoint"]
	if watchExpr == "" {
		watchExpr = "selinux_enforcing"
	}
	queryCmd := deps.ModuleConfig["query"]
	if queryCmd == "" {
		queryCmd = "get_selinux_enforcing"
	}
	return &EnforcingFlag{watchExpr: watchExpr, queryCmd: queryCmd}, nil
}

func (m *EnforcingFlag) Name() string { return "EnforcingFlag" }
func (m *EnforcingFlag) Kind() Kind   { return KindDynamic }

func (m *EnforcingFlag) Initialize(_ context.Context, dbg debugger.Channel) ([]string, error) {
	resp, err := dbg.Command(m.queryCmd, 1)
	if err != nil {
		return nil, fmt.Errorf("enforcingflag: query current state: %w", err)
	}
	m.enforcing = gdbValue(resp[0])

	watch, err := dbg.Command("watch "+m.watchExpr, 1)
	if err != nil {
		return nil, fmt.Errorf("enforcingflag: install watchpoint on %s: %w", m.watchExpr, err)
	}
	return []string{gdbValue(watch[0])}, nil
}

// OnEvent always reports a state change: the watchpoint firing is itself the
// only signal available, so the module unconditionally flips its cached
// value and lets Check re-evaluate against the client criteria.
func (m *EnforcingFlag) OnEvent(_ context.Context, dbg debugger.Channel) (bool, error) {
	for i := 0; i < preambleLines; i++ {
		if _, err := dbg.ReadLine(); err != nil {
			return false, fmt.Errorf("enforcingflag: drain event preamble: %w", err)
		}
	}
	if m.enforcing == "0" {
		m.enforcing = "1"
	} else {
		m.enforcing = "0"
	}
	return true, nil
}

func (m *EnforcingFlag) Check(criteria config.Criteria) bool {
	if !criteria.HasSection(m.Name()) {
		return true
	}
	want, ok := criteria.Get(m.Name(), "enforcing")
	if !ok {
		return true
	}
	return want == m.enforcing
}
