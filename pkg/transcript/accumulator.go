package transcript

import "strings"

// LineSeparator joins transcript lines when the accumulator is rendered.
const LineSeparator = "\n"

// Accumulator is the append-only conversation log for a single call.
// All writes for one call come from that call's event-processing goroutine,
// and reads happen only after the event stream has terminated, so no
// internal locking is needed.
type Accumulator struct {
	lines []string
}

// NewAccumulator creates an empty transcript accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		lines: make([]string, 0, 32),
	}
}

// Add appends a line to the transcript, preserving call order.
func (a *Accumulator) Add(line string) {
	a.lines = append(a.lines, line)
}

// Get returns all recorded lines joined in insertion order.
func (a *Accumulator) Get() string {
	return strings.Join(a.lines, LineSeparator)
}

// IsEmpty reports whether no line has been recorded.
func (a *Accumulator) IsEmpty() bool {
	return len(a.lines) == 0
}

// Len returns the number of recorded lines.
func (a *Accumulator) Len() int {
	return len(a.lines)
}
