package watcher

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dando385/vm-integrity-monitor/internal/config"
	"github.com/dando385/vm-integrity-monitor/internal/debugger"
	"github.com/dando385/vm-integrity-monitor/internal/modules"
	"github.com/dando385/vm-integrity-monitor/internal/telemetry"
)

// stubModule is a minimal modules.Module double that lets tests control
// Initialize/OnEvent behavior directly.
type stubModule struct {
	name        string
	descriptors []string
	onEvent     func() (bool, error)
}

func (m *stubModule) Name() string          { return m.name }
func (m *stubModule) Kind() modules.Kind     { return modules.KindDynamic }
func (m *stubModule) Initialize(context.Context, debugger.Channel) ([]string, error) {
	return m.descriptors, nil
}
func (m *stubModule) OnEvent(context.Context, debugger.Channel) (bool, error) {
	return m.onEvent()
}
func (m *stubModule) Check(config.Criteria) bool { return true }

type recordingTrigger struct {
	calls []string
	err   error
}

func (t *recordingTrigger) OnModuleChanged(_ context.Context, name string) error {
	t.calls = append(t.calls, name)
	return t.err
}

func TestInstallRejectsDuplicateWatchpointDescriptors(t *testing.T) {
	fake := debugger.NewFake()
	w := New(fake, &recordingTrigger{}, zerolog.Nop(), nil)

	a := &stubModule{name: "A", descriptors: []string{"watch1"}}
	b := &stubModule{name: "B", descriptors: []string{"watch1"}}

	err := w.Install(context.Background(), []modules.Module{a, b})
	if err == nil {
		t.Fatal("expected duplicate watchpoint descriptor error")
	}
}

func TestRunDispatchesMatchingWatchpointAndTriggers(t *testing.T) {
	fake := debugger.NewFake()
	fake.Script("continue", "Continuing.")

	trig := &recordingTrigger{}
	w := New(fake, trig, zerolog.Nop(), telemetry.New())

	mod := &stubModule{
		name:        "Heartbeat",
		descriptors: []string{"Hardware watchpoint 2"},
		onEvent:     func() (bool, error) { return true, nil },
	}
	if err := w.Install(context.Background(), []modules.Module{mod}); err != nil {
		t.Fatalf("install: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	fake.Feed("Hardware watchpoint 2: ima_measurements->prev")
	fake.Script("detach")
	fake.Feed("Program received signal SIGINT")

	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(trig.calls) != 1 || trig.calls[0] != "Heartbeat" {
		t.Fatalf("expected one trigger call for Heartbeat, got %v", trig.calls)
	}
}

func TestRunDropsUnmatchedLines(t *testing.T) {
	fake := debugger.NewFake()
	fake.Script("continue", "Continuing.")
	fake.Script("detach")
	trig := &recordingTrigger{}
	w := New(fake, trig, zerolog.Nop(), nil)

	mod := &stubModule{name: "X", descriptors: []string{"watch-x"}, onEvent: func() (bool, error) { return false, nil }}
	if err := w.Install(context.Background(), []modules.Module{mod}); err != nil {
		t.Fatalf("install: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	fake.Feed("some unrelated diagnostic line")
	fake.Feed("Program received signal SIGINT")

	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(trig.calls) != 0 {
		t.Fatalf("expected no trigger calls for unmatched lines, got %v", trig.calls)
	}
}

func TestRunSwallowsOnEventErrorAndContinues(t *testing.T) {
	fake := debugger.NewFake()
	fake.Script("continue", "Continuing.")
	fake.Script("detach")
	trig := &recordingTrigger{}
	w := New(fake, trig, zerolog.Nop(), nil)

	mod := &stubModule{name: "Flaky", descriptors: []string{"watch-flaky"}, onEvent: func() (bool, error) {
		return false, errors.New("boom")
	}}
	if err := w.Install(context.Background(), []modules.Module{mod}); err != nil {
		t.Fatalf("install: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	fake.Feed("watch-flaky fired")
	fake.Feed("Program received signal SIGINT")

	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(trig.calls) != 0 {
		t.Fatalf("expected OnEvent error to suppress the trigger call, got %v", trig.calls)
	}
}

func TestRunRecordsDispatchLatency(t *testing.T) {
	fake := debugger.NewFake()
	fake.Script("continue", "Continuing.")
	fake.Script("detach")
	trig := &recordingTrigger{}
	w := New(fake, trig, zerolog.Nop(), telemetry.New())

	mod := &stubModule{
		name:        "Heartbeat",
		descriptors: []string{"watch-hb"},
		onEvent:     func() (bool, error) { return false, nil },
	}
	if err := w.Install(context.Background(), []modules.Module{mod}); err != nil {
		t.Fatalf("install: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	fake.Feed("watch-hb fired")
	fake.Feed("Program received signal SIGINT")

	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}

	tail := w.LatencyTail()
	if tail.Max == 0 {
		t.Fatal("expected a non-zero latency sample after dispatch")
	}
}

func TestDetachIssuesInterrupt(t *testing.T) {
	fake := debugger.NewFake()
	w := New(fake, &recordingTrigger{}, zerolog.Nop(), nil)
	if err := w.Detach(); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if fake.Interrupts() != 1 {
		t.Fatalf("expected one interrupt, got %d", fake.Interrupts())
	}
}
