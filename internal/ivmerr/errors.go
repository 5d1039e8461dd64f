// Package ivmerr defines the sentinel errors shared across the monitor core.
//
// A criteria mismatch is deliberately NOT one of these: a false result from
// Module.Check is a normal policy outcome, not a failure, and is returned to
// callers as a plain bool (see Registry.Connect).
package ivmerr

import "errors"

var (
	// ErrAlreadyActive is returned by Registry.Start when the named guest
	// already has a Monitor under management.
	ErrAlreadyActive = errors.New("already active")

	// ErrRunningUnmanaged is returned when the hypervisor reports a guest
	// is active but the Registry has no Monitor for it.
	ErrRunningUnmanaged = errors.New("running unmanaged")

	// ErrNotRunning is returned by Stop/ForceStop when the guest isn't
	// active under the hypervisor and isn't managed either.
	ErrNotRunning = errors.New("not running")

	// ErrUnknownGuest is returned by Registry.Start when a guest name has no
	// valid configuration entry.
	ErrUnknownGuest = errors.New("unknown guest")

	// ErrNotManaged is returned by Detach/Status-affecting operations that
	// require an in-process Monitor and find none.
	ErrNotManaged = errors.New("not managed by this registry")

	// ErrDestroyed is returned when an operation targets a Monitor that has
	// already transitioned to Destroyed.
	ErrDestroyed = errors.New("monitor destroyed")

	// ErrUnknownClient is returned by Unregister for an IP with no
	// criteria-file mapping in configuration.
	ErrUnknownClient = errors.New("unknown client")

	// ErrUnknownModule is returned when a configured static/dynamic module
	// name has no entry in the module registry.
	ErrUnknownModule = errors.New("unknown introspection module")

	// ErrDuplicateWatchpoint is raised if two modules on the same guest
	// return the same watchpoint descriptor (spec invariant: watchpoint
	// descriptors are pairwise distinct across one guest's modules).
	ErrDuplicateWatchpoint = errors.New("duplicate watchpoint descriptor")
)
