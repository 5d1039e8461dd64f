// Package output renders Monitor/Registry status for the CLI, in both
// colorized terminal and machine-readable JSON form.
package output

import (
	"fmt"
	"sort"

	"github.com/dando385/vm-integrity-monitor/internal/monitor"
	"github.com/dando385/vm-integrity-monitor/internal/telemetry"
)

// RenderStatusTerminal prints a single guest's status to the terminal,
// colorized by lifecycle state.
func RenderStatusTerminal(st monitor.Status) {
	fmt.Println()
	fmt.Printf("%s %s\n", bold("Guest:"), st.Name)
	fmt.Printf("%s %s\n", bold("State:"), formatState(st.State))
	fmt.Println("───────────────────────────────────────────────────────────────")

	fmt.Printf("  %s %s\n", bold("Static modules:"), joinOrNone(st.Static))
	fmt.Printf("  %s %s\n", bold("Dynamic modules:"), joinOrNone(st.Dynamic))

	fmt.Printf("\n  %s\n", bold("Registered clients"))
	if len(st.Clients) == 0 {
		fmt.Println("    (none)")
	} else {
		paths := make([]string, 0, len(st.Clients))
		for p := range st.Clients {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			fmt.Printf("    %s: %v\n", p, st.Clients[p])
		}
	}

	fmt.Printf("\n  %s\n", bold("Dispatch latency"))
	if st.Latency == (telemetry.DispatchLatencyTail{}) {
		fmt.Println("    (no samples yet)")
	} else {
		fmt.Printf("    p50=%s p95=%s p99=%s max=%s\n",
			st.Latency.P50, st.Latency.P95, st.Latency.P99, st.Latency.Max)
	}
	fmt.Println()
}

func formatState(s monitor.State) string {
	switch s {
	case monitor.Running:
		return green(s.String())
	case monitor.RegisteringStatic, monitor.GuestCreatedPausing:
		return yellow(s.String())
	case monitor.Destroyed:
		return red(s.String())
	default:
		return s.String()
	}
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	out := sorted[0]
	for _, n := range sorted[1:] {
		out += ", " + n
	}
	return out
}
