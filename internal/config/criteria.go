package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Criteria is a client's integrity-criteria document: section (module name)
// to option to expected value. A module with no section in a Criteria always
// passes Check vacuously — see spec.md §4.2/§4.3 and property P3.
type Criteria map[string]map[string]string

// LoadCriteria reads and parses a client's criteria file.
func LoadCriteria(path string) (Criteria, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read criteria %s: %w", path, err)
	}
	var c Criteria
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &c); err != nil {
		return nil, fmt.Errorf("parse criteria %s: %w", path, err)
	}
	if c == nil {
		c = Criteria{}
	}
	return c, nil
}

// HasSection reports whether the criteria document names module.
func (c Criteria) HasSection(module string) bool {
	_, ok := c[module]
	return ok
}

// Get returns the expected value for (module, option) and whether it was
// present.
func (c Criteria) Get(module, option string) (string, bool) {
	section, ok := c[module]
	if !ok {
		return "", false
	}
	v, ok := section[option]
	return v, ok
}

// Items returns the (option, value) pairs for module's section, or nil if
// the document has no such section.
func (c Criteria) Items(module string) map[string]string {
	return c[module]
}
