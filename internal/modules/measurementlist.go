package modules

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dando385/vm-integrity-monitor/internal/config"
	"github.com/dando385/vm-integrity-monitor/internal/debugger"
)

// zeroDigest is the boot-time sentinel: a freshly-booted kernel's integrity
// subsystem reports an all-zero measurement before any real entries exist,
// and it is always trusted regardless of the configured trusted set (P8).
const zeroDigest = "0000000000000000000000000000000000000000"

// MeasurementList is the dynamic module tracking a guest's append-only
// measurement-list set (PRIMA, in the original project). Check requires the
// full observed set to be a subset of a named trusted set.
type MeasurementList struct {
	watchExpr  string
	listLenCmd string
	lastCmd    string
	hashSets   config.HashSets

	mlist map[string]struct{}
}

func newMeasurementList(deps Deps) (Module, error) {
	watchExpr := deps.ModuleConfig["watchpoint"]
	if watchExpr == "" {
		watchExpr = "ima_measurements->prev"
	}
	listLenCmd := deps.ModuleConfig["list_length_query"]
	if listLenCmd == "" {
		listLenCmd = "print_mlist"
	}
	lastCmd := deps.ModuleConfig["last_hash_query"]
	if lastCmd == "" {
		lastCmd = "last_hash"
	}
	return &MeasurementList{
		watchExpr:  watchExpr,
		listLenCmd: listLenCmd,
		lastCmd:    lastCmd,
		hashSets:   deps.HashSets,
		mlist:      map[string]struct{}{},
	}, nil
}

func (m *MeasurementList) Name() string { return "MeasurementList" }
func (m *MeasurementList) Kind() Kind   { return KindDynamic }

func (m *MeasurementList) Initialize(_ context.Context, dbg debugger.Channel) ([]string, error) {
	resp, err := dbg.Command(m.listLenCmd, 1)
	if err != nil {
		return nil, fmt.Errorf("measurementlist: query list length: %w", err)
	}
	num, err := strconv.Atoi(gdbValue(resp[0]))
	if err != nil {
		return nil, fmt.Errorf("measurementlist: parse list length %q: %w", resp[0], err)
	}

	for i := 0; i < num; i++ {
		line, err := dbg.ReadLine()
		if err != nil {
			return nil, fmt.Errorf("measurementlist: read initial entry %d/%d: %w", i+1, num, err)
		}
		m.mlist[gdbValue(line)] = struct{}{}
	}

	watch, err := dbg.Command("watch "+m.watchExpr, 1)
	if err != nil {
		return nil, fmt.Errorf("measurementlist: install watchpoint on %s: %w", m.watchExpr, err)
	}
	return []string{gdbValue(watch[0])}, nil
}

func (m *MeasurementList) OnEvent(_ context.Context, dbg debugger.Channel) (bool, error) {
	for i := 0; i < preambleLines; i++ {
		if _, err := dbg.ReadLine(); err != nil {
			return false, fmt.Errorf("measurementlist: drain event preamble: %w", err)
		}
	}

	resp, err := dbg.Command(m.lastCmd, 1)
	if err != nil {
		return false, fmt.Errorf("measurementlist: query last hash: %w", err)
	}
	m.mlist[gdbValue(resp[0])] = struct{}{}
	return true, nil
}

func (m *MeasurementList) Check(criteria config.Criteria) bool {
	if !criteria.HasSection(m.Name()) {
		return true
	}

	var trusted config.HashSet
	if name, ok := criteria.Get(m.Name(), "trusted"); ok {
		trusted = m.hashSets[name]
	}

	for digest := range m.mlist {
		if digest == zeroDigest {
			continue
		}
		if !trusted.Contains(digest) {
			return false
		}
	}
	return true
}
