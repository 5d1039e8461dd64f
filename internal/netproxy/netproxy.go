// Package netproxy defines the Monitor's network-severing collaborator
// (the original project's util.netproxy.Proxy, driven over the VMServer's
// configured network-proxy endpoint). Killing a client↔guest session on
// criteria failure is the enforcement point P5 depends on; the actual
// proxy implementation is an external system, out of scope here.
package netproxy

import "context"

// NetworkProxy severs an established client↔guest network session.
type NetworkProxy interface {
	// Kill tears down the session between clientIP and guestIP.
	Kill(ctx context.Context, clientIP, guestIP string) error
}
