// Package config loads the monitor's YAML configuration documents: the main
// daemon config, per-client criteria files, and the trusted hash-sets file.
//
// Every document in this package is YAML rather than the original project's
// ConfigParser/INI dialect (see SPEC_FULL.md §3.1): a Criteria document, for
// instance, is modeled as a plain map[string]map[string]string — section
// (introspection module name) to option to expected value — which preserves
// the "absent section ⇒ vacuous pass" rule as ordinary map-key absence.
//
// Environment variables are expanded in every document before parsing
// (os.ExpandEnv), the same convention the teacher repo uses for its provider
// URLs, so secrets like a network-proxy auth token never need to live in a
// checked-in file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the root of the daemon's main configuration file.
type Document struct {
	VMServer VMServer          `yaml:"vmserver"`
	Monitor  MonitorSection    `yaml:"monitor"`
	Domains  map[string]string `yaml:"domains"` // guest name -> "<ip> <debugger-port>"
	Clients  map[string]string `yaml:"clients"` // client IP -> path to its criteria file
	Watcher  WatcherSection    `yaml:"watcher"`
	// Modules holds one entry per module-specific configuration section,
	// keyed by module name (e.g. "FileHash"), mirroring the shape of a
	// Criteria document so FileHash's XPath selector options live here.
	Modules map[string]map[string]string `yaml:"modules"`
}

// VMServer configures the control-facade listener and its network-proxy
// collaborator endpoint.
type VMServer struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	NetworkProxy string `yaml:"network_proxy"`
}

// MonitorSection lists which introspection modules run for every guest and
// how long to pause between guest creation and dynamic-module attach.
type MonitorSection struct {
	Static       []string `yaml:"static"`
	Dynamic      []string `yaml:"dynamic"`
	PauseSeconds int      `yaml:"pause"`
}

// WatcherSection points at the debugger macro file sourced on attach.
type WatcherSection struct {
	Macros string `yaml:"macros"`
}

// Domain is a guest's fixed name↔IP↔debugger-port mapping.
type Domain struct {
	Name string
	IP   string
	Port string
}

// Load reads and parses the main configuration document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var doc Document
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &doc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if doc.Monitor.PauseSeconds < 0 {
		return nil, fmt.Errorf("config %s: monitor.pause must not be negative", path)
	}
	return &doc, nil
}

// Domain resolves a configured guest name to its IP and debugger port.
// The value is the same "<ip> <port>" pair the original project stored as a
// single option string, so a malformed entry is a configuration error, not a
// runtime one.
func (d *Document) Domain(name string) (Domain, error) {
	raw, ok := d.Domains[name]
	if !ok {
		return Domain{}, fmt.Errorf("config: no [Domains] entry for guest %q", name)
	}
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return Domain{}, fmt.Errorf("config: domains.%s must be \"<ip> <port>\", got %q", name, raw)
	}
	if _, err := strconv.Atoi(fields[1]); err != nil {
		return Domain{}, fmt.Errorf("config: domains.%s port %q is not numeric: %w", name, fields[1], err)
	}
	return Domain{Name: name, IP: fields[0], Port: fields[1]}, nil
}

// CriteriaPath resolves a registered client IP to the path of its criteria
// file. Returns ok=false if the client isn't configured at all.
func (d *Document) CriteriaPath(clientIP string) (string, bool) {
	path, ok := d.Clients[clientIP]
	return path, ok
}

// ModuleConfig returns the module-specific option map for the named module,
// or an empty map if the document has no section for it.
func (d *Document) ModuleConfig(name string) map[string]string {
	if opts, ok := d.Modules[name]; ok {
		return opts
	}
	return map[string]string{}
}
