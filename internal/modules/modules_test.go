package modules

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dando385/vm-integrity-monitor/internal/config"
	"github.com/dando385/vm-integrity-monitor/internal/debugger"
	"github.com/dando385/vm-integrity-monitor/internal/xmlguest"
)

const testDomainXML = `<domain>
  <name>g1</name>
  <devices><disk><source file="PLACEHOLDER"/></disk></devices>
</domain>`

func TestFileHashMatchesExpectedDigest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abcd")
	if err := os.WriteFile(path, []byte("abcd"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	doc := []byte(`<domain><devices><disk><source file="` + path + `"/></disk></devices></domain>`)
	descriptor, err := xmlguest.Parse(doc)
	if err != nil {
		t.Fatalf("parse descriptor: %v", err)
	}

	mod, err := Construct("FileHash", Deps{
		Descriptor:   descriptor,
		ModuleConfig: map[string]string{"disk": "/domain/devices/disk/source/@file"},
	})
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	if _, err := mod.Initialize(context.Background(), nil); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	criteria := config.Criteria{"FileHash": {"disk": "81fe8bfe87576c3ecb22426f8e57847382917acf"}}
	if !mod.Check(criteria) {
		t.Error("expected matching digest to satisfy Check")
	}

	mismatched := config.Criteria{"FileHash": {"disk": "0000000000000000000000000000000000000000"}}
	if mod.Check(mismatched) {
		t.Error("expected mismatched digest to fail Check")
	}
}

func TestVacuousPassWhenCriteriaOmitsModule(t *testing.T) {
	mod, err := Construct("Heartbeat", Deps{})
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	// P3: a criteria document with no section for a module always passes.
	if !mod.Check(config.Criteria{}) {
		t.Error("expected vacuous pass for module absent from criteria")
	}
}

func TestEnforcingFlagTogglesOnEvent(t *testing.T) {
	fake := debugger.NewFake()
	fake.Script("get_selinux_enforcing", "$1 = 1")
	fake.Script("watch selinux_enforcing", "Hardware watchpoint 2: selinux_enforcing")

	mod, err := Construct("EnforcingFlag", Deps{})
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	descriptors, err := mod.Initialize(context.Background(), fake)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if len(descriptors) != 1 {
		t.Fatalf("expected one watchpoint descriptor, got %d", len(descriptors))
	}

	criteria := config.Criteria{"EnforcingFlag": {"enforcing": "1"}}
	if !mod.Check(criteria) {
		t.Error("expected enforcing=1 to match initial state")
	}

	for i := 0; i < preambleLines; i++ {
		fake.Feed("preamble")
	}
	changed, err := mod.OnEvent(context.Background(), fake)
	if err != nil {
		t.Fatalf("onevent: %v", err)
	}
	if !changed {
		t.Error("expected OnEvent to report a state change")
	}
	if mod.Check(criteria) {
		t.Error("expected enforcing flag to have toggled away from 1")
	}
}

func TestMeasurementListZeroDigestAlwaysTrusted(t *testing.T) {
	fake := debugger.NewFake()
	fake.Script("print_mlist", "$1 = 0")
	fake.Script("watch ima_measurements->prev", "Hardware watchpoint 3: ima_measurements->prev")

	mod, err := Construct("MeasurementList", Deps{HashSets: config.HashSets{}})
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	if _, err := mod.Initialize(context.Background(), fake); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	for i := 0; i < preambleLines; i++ {
		fake.Feed("preamble")
	}
	fake.Script("last_hash", "$1 = "+zeroDigest)
	if _, err := mod.OnEvent(context.Background(), fake); err != nil {
		t.Fatalf("onevent: %v", err)
	}

	criteria := config.Criteria{"MeasurementList": {"trusted": "empty"}}
	if !mod.Check(criteria) {
		t.Error("P8: all-zero digest must always be trusted")
	}
}

func TestMeasurementListRejectsUntrustedDigest(t *testing.T) {
	fake := debugger.NewFake()
	fake.Script("print_mlist", "$1 = 0")
	fake.Script("watch ima_measurements->prev", "Hardware watchpoint 3: ima_measurements->prev")

	trustedSets := config.HashSets{"known": {"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa": struct{}{}}}
	mod, err := Construct("MeasurementList", Deps{HashSets: trustedSets})
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	if _, err := mod.Initialize(context.Background(), fake); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	for i := 0; i < preambleLines; i++ {
		fake.Feed("preamble")
	}
	fake.Script("last_hash", "$1 = cccccccccccccccccccccccccccccccccccccccc")
	if _, err := mod.OnEvent(context.Background(), fake); err != nil {
		t.Fatalf("onevent: %v", err)
	}

	criteria := config.Criteria{"MeasurementList": {"trusted": "known"}}
	if mod.Check(criteria) {
		t.Error("expected untrusted digest to fail Check")
	}
}
