// Package modules implements the pluggable introspection-module framework
// (spec.md §4.2/§4.3): a capability interface plus a static name→constructor
// table, per the design note's option (b) — chosen over a closed sum type
// because new modules should be addable without touching the Watcher or
// Monitor's dispatch code, the same way the teacher's provider package
// favors small composable interfaces over reflection-driven lookup.
package modules

import (
	"context"
	"fmt"

	"github.com/dando385/vm-integrity-monitor/internal/config"
	"github.com/dando385/vm-integrity-monitor/internal/debugger"
	"github.com/dando385/vm-integrity-monitor/internal/ivmerr"
	"github.com/dando385/vm-integrity-monitor/internal/xmlguest"
)

// Kind distinguishes a module's lifecycle: Static modules measure once at
// load time; Dynamic modules install watchpoints and react to events for
// the lifetime of the guest.
type Kind int

const (
	KindStatic Kind = iota
	KindDynamic
)

func (k Kind) String() string {
	if k == KindStatic {
		return "static"
	}
	return "dynamic"
}

// Module is the capability interface every introspection module implements.
//
// Initialize is called once: for a static module it performs all
// measurement now and returns no watchpoints; for a dynamic module it
// installs one or more watchpoints via dbg and returns their descriptors.
//
// OnEvent is invoked by the Watcher when one of this module's watchpoint
// descriptors appears in debugger output. It must drain any lines the
// debugger emits as part of the notification and return true iff the
// module's observable state changed. Static modules never receive OnEvent
// calls.
//
// Check is a pure predicate over the module's current state and a criteria
// document; it returns true if the criteria are satisfied, or if the
// document names no section for this module (the vacuous-pass rule, P3).
// Check must be total: it never returns an error.
type Module interface {
	Name() string
	Kind() Kind
	Initialize(ctx context.Context, dbg debugger.Channel) ([]string, error)
	OnEvent(ctx context.Context, dbg debugger.Channel) (bool, error)
	Check(criteria config.Criteria) bool
}

// Deps bundles everything a module constructor might need. Each constructor
// uses only the fields relevant to it.
type Deps struct {
	// ModuleConfig is this module's option map from the main configuration
	// document (e.g. FileHash's XPath selectors).
	ModuleConfig map[string]string
	// Descriptor is the guest's parsed XML descriptor, used by static
	// modules that measure configuration artifacts before launch.
	Descriptor *xmlguest.Descriptor
	// HashSets is the preloaded trusted-digest-set table, used by
	// MeasurementList.
	HashSets config.HashSets
}

// Constructor builds a Module from Deps.
type Constructor func(Deps) (Module, error)

var registry = map[string]Constructor{
	"FileHash":        newFileHash,
	"EnforcingFlag":   newEnforcingFlag,
	"MeasurementList": newMeasurementList,
	"Heartbeat":       newHeartbeat,
}

// Construct looks up name in the static constructor table and builds it.
func Construct(name string, deps Deps) (Module, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ivmerr.ErrUnknownModule, name)
	}
	return ctor(deps)
}
