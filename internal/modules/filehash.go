package modules

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/dando385/vm-integrity-monitor/internal/config"
	"github.com/dando385/vm-integrity-monitor/internal/debugger"
	"github.com/dando385/vm-integrity-monitor/internal/xmlguest"
)

// FileHash is the static load-time measurement module. Each option in its
// configuration section is an XPath-style selector resolved against the
// guest's descriptor to a file path; Initialize computes the SHA-1 of that
// file's contents. Check requires exact digest equality for every option the
// criteria document names.
type FileHash struct {
	descriptor *xmlguest.Descriptor
	selectors  map[string]string // option name -> XPath selector
	hashes     map[string]string // option name -> hex SHA-1 digest
}

func newFileHash(deps Deps) (Module, error) {
	if deps.Descriptor == nil {
		return nil, fmt.Errorf("filehash: no guest descriptor supplied")
	}
	return &FileHash{
		descriptor: deps.Descriptor,
		selectors:  deps.ModuleConfig,
		hashes:     map[string]string{},
	}, nil
}

func (m *FileHash) Name() string { return "FileHash" }
func (m *FileHash) Kind() Kind   { return KindStatic }

// Initialize resolves each selector to a path and hashes the file it names.
// The debugger channel is unused: static modules measure before the guest
// exists, let alone before a debugger attaches.
func (m *FileHash) Initialize(_ context.Context, _ debugger.Channel) ([]string, error) {
	for option, selector := range m.selectors {
		path, err := m.descriptor.SelectOne(selector)
		if err != nil {
			return nil, fmt.Errorf("filehash: resolve %s=%q: %w", option, selector, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("filehash: read %s (%s): %w", option, path, err)
		}
		sum := sha1.Sum(data)
		m.hashes[option] = hex.EncodeToString(sum[:])
	}
	return nil, nil
}

// OnEvent is never called on a static module; it exists only to satisfy
// Module.
func (m *FileHash) OnEvent(context.Context, debugger.Channel) (bool, error) {
	return false, nil
}

func (m *FileHash) Check(criteria config.Criteria) bool {
	if !criteria.HasSection(m.Name()) {
		return true
	}
	for option, want := range criteria.Items(m.Name()) {
		if m.hashes[option] != want {
			return false
		}
	}
	return true
}
