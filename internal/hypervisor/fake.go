package hypervisor

import (
	"context"
	"sync"
)

// Fake is an in-memory Hypervisor for tests.
type Fake struct {
	mu      sync.Mutex
	domains map[string]bool // name -> active
	xml     map[string][]byte

	Destroyed []string
}

func NewFake() *Fake {
	return &Fake{domains: map[string]bool{}, xml: map[string][]byte{}}
}

// Seed registers a domain as known, optionally already active, without
// going through Create (simulates a guest started outside this process).
func (f *Fake) Seed(name string, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.domains[name] = active
}

// SeedXML sets the descriptor Describe returns for name.
func (f *Fake) SeedXML(name string, xml []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.xml[name] = xml
}

func (f *Fake) Describe(_ context.Context, name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.xml[name], nil
}

func (f *Fake) Lookup(_ context.Context, name string) (bool, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	active, exists := f.domains[name]
	return exists, active, nil
}

func (f *Fake) Create(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.domains[name] = true
	return nil
}

func (f *Fake) Destroy(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.domains[name] = false
	f.Destroyed = append(f.Destroyed, name)
	return nil
}
