package modules

import "strings"

// preambleLines is the number of boilerplate lines a dynamic module's OnEvent
// drains after the Watcher has already read the "Hardware watchpoint N:
// <expr>" banner that named the watchpoint: a blank line, "Old value = ...",
// "New value = ...", and the two lines of the stop location. Per spec.md
// §9's framing note, this is documented once here rather than scattered
// across every OnEvent.
const preambleLines = 5

// gdbValue extracts the right-hand side of a gdb "$N = VALUE" print result.
// Lines with no "= " are returned trimmed as-is, which lets the same helper
// be reused for one-line acknowledgements that aren't print results.
func gdbValue(line string) string {
	if idx := strings.Index(line, "= "); idx >= 0 {
		return strings.TrimSpace(line[idx+2:])
	}
	return strings.TrimSpace(line)
}
