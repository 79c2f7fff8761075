package prompt

import "strings"

// Instructions accumulates ad-hoc guidance an operator adds across
// successive regenerations of the same draft. It is a plain value: whoever
// drives the workflow owns it and passes it in, nothing stores it globally.
type Instructions []string

// With returns a copy of in with note appended. Blank notes are ignored.
func (in Instructions) With(note string) Instructions {
	note = strings.TrimSpace(note)
	if note == "" {
		return in
	}
	out := make(Instructions, len(in), len(in)+1)
	copy(out, in)
	return append(out, note)
}

// String joins the notes one per line, in the order they were added.
func (in Instructions) String() string {
	return strings.Join(in, "\n")
}
