package netproxy

import (
	"context"
	"sync"
)

// Fake is an in-memory NetworkProxy for tests.
type Fake struct {
	mu    sync.Mutex
	kills []Kill
}

// Kill records one client<->guest session tear-down.
type Kill struct {
	ClientIP string
	GuestIP  string
}

func NewFake() *Fake { return &Fake{} }

func (f *Fake) Kill(_ context.Context, clientIP, guestIP string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kills = append(f.kills, Kill{ClientIP: clientIP, GuestIP: guestIP})
	return nil
}

func (f *Fake) Kills() []Kill {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Kill, len(f.kills))
	copy(out, f.kills)
	return out
}
