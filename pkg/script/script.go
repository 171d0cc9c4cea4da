// Package script models generated pytest scripts as immutable text snapshots
// and provides the two operations the healing engine applies between attempts:
// instrumentation (wrapping test bodies in a DOM-dumping except block) and
// patching (replacing one failing command with a corrected one).
//
// Patching never mutates a shared buffer: ApplyFix returns a new snapshot, so
// each execution attempt owns a full version of the script and the chain of
// versions doubles as an audit trail.
package script

import (
	"errors"
	"strings"
)

// Errors returned by ApplyFix.
var (
	// ErrFixNotFound means the failing command does not occur verbatim in
	// the script, so no safe substitution is possible.
	ErrFixNotFound = errors.New("failing command not found in script")

	// ErrEmptyFix means the proposed replacement is empty or identical to
	// the failing command.
	ErrEmptyFix = errors.New("empty or no-op fix")
)

// Script is an immutable snapshot of a generated test script.
type Script struct {
	text string
}

// New creates a Script from raw source text.
func New(text string) Script {
	return Script{text: text}
}

// Text returns the script source.
func (s Script) Text() string {
	return s.text
}

// IsEmpty reports whether the script has no content.
func (s Script) IsEmpty() bool {
	return strings.TrimSpace(s.text) == ""
}

// ApplyFix returns a new Script with the first verbatim occurrence of the
// failing command replaced by the fixed command. The input script is never
// modified. Exactly one occurrence is replaced; if the failing command does
// not occur at all, ErrFixNotFound is returned and the original script is
// returned unchanged.
func ApplyFix(s Script, failing, fixed string) (Script, error) {
	if strings.TrimSpace(fixed) == "" || fixed == failing {
		return s, ErrEmptyFix
	}
	if failing == "" || !strings.Contains(s.text, failing) {
		return s, ErrFixNotFound
	}
	return Script{text: strings.Replace(s.text, failing, fixed, 1)}, nil
}
