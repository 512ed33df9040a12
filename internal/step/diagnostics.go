// SPDX-License-Identifier: MPL-2.0

package step

import "fmt"

type (
	// Diagnostic is one entry in a step's diagnostic list.
	Diagnostic struct {
		Severity Severity `json:"severity"`
		Message  string   `json:"message"`
	}

	// Diagnostics is the ordered sink a step writes to. It belongs to exactly
	// one invocation and is not safe for concurrent use.
	Diagnostics struct {
		entries []Diagnostic
	}
)

// Errorf records an error diagnostic. Any error diagnostic fails the invocation.
func (d *Diagnostics) Errorf(format string, args ...any) {
	d.add(SeverityError, fmt.Sprintf(format, args...))
}

// Warnf records a warning diagnostic.
func (d *Diagnostics) Warnf(format string, args ...any) {
	d.add(SeverityWarning, fmt.Sprintf(format, args...))
}

// Messagef records an informational diagnostic.
func (d *Diagnostics) Messagef(format string, args ...any) {
	d.add(SeverityMessage, fmt.Sprintf(format, args...))
}

func (d *Diagnostics) add(s Severity, msg string) {
	d.entries = append(d.entries, Diagnostic{Severity: s, Message: msg})
}

// HasErrors reports whether an error diagnostic was recorded.
func (d *Diagnostics) HasErrors() bool {
	for _, e := range d.entries {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Entries returns a copy of the recorded diagnostics in recording order.
func (d *Diagnostics) Entries() []Diagnostic {
	if len(d.entries) == 0 {
		return nil
	}
	out := make([]Diagnostic, len(d.entries))
	copy(out, d.entries)
	return out
}

// Len returns the number of recorded diagnostics.
func (d *Diagnostics) Len() int { return len(d.entries) }
