// Package hypervisor defines the Monitor's external collaborator contract
// for creating, destroying, and querying guest domains — the Go-native
// shape of the original project's libvirt "qemu:///system" connection
// (see original_source/util/vmctl.py's self.kvm.lookupByName/isActive/
// destroy calls). Wiring a real libvirt binding is out of scope (spec.md
// Non-goals); this package fixes the contract and provides Virsh, which
// shells out to the virsh CLI, for production and a fake for tests and local
// development.
package hypervisor

import "context"

// Hypervisor is the contract a Monitor depends on to manage one guest
// domain's lifecycle.
type Hypervisor interface {
	// Lookup reports whether name is a known domain and, if so, whether it
	// is currently active — mirroring libvirt's lookupByName + isActive.
	Lookup(ctx context.Context, name string) (exists bool, active bool, err error)
	// Create starts the named guest domain.
	Create(ctx context.Context, name string) error
	// Destroy stops the named guest domain unconditionally.
	Destroy(ctx context.Context, name string) error
	// Describe returns the domain's XML descriptor, the source static
	// modules (e.g. FileHash) resolve selectors against and the Monitor
	// uses to find the guest's kernel image for the Watcher.
	Describe(ctx context.Context, name string) ([]byte, error)
}
