package output

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/rodaine/table"

	"github.com/dando385/vm-integrity-monitor/internal/monitor"
)

// Colors for status indicators, shared across this package's renderers.
var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// RenderFleetTerminal prints a one-line-per-guest summary table across every
// guest a Registry manages, keyed by name for deterministic output.
func RenderFleetTerminal(statuses map[string]monitor.Status) {
	fmt.Println()
	fmt.Println(bold("VM Integrity Monitor — Fleet Status"))

	headerFmt := color.New(color.FgCyan, color.Underline).SprintfFunc()
	tbl := table.New("Guest", "State", "Static", "Dynamic", "Clients", "P99 Latency")
	tbl.WithHeaderFormatter(headerFmt)

	names := make([]string, 0, len(statuses))
	for name := range statuses {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		st := statuses[name]
		tbl.AddRow(
			st.Name,
			formatState(st.State),
			len(st.Static),
			len(st.Dynamic),
			len(st.Clients),
			st.Latency.P99,
		)
	}

	tbl.Print()
	fmt.Println()
}

// ClearScreen clears the terminal, for a future watch-mode rendering.
func ClearScreen() {
	fmt.Print("\033[2J\033[H")
}

// DisableColors turns off color output (for non-TTY or JSON mode).
func DisableColors() {
	color.NoColor = true
}

// IsTerminal returns true if stdout is a terminal.
func IsTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
