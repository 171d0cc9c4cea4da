// Package advisor asks a language model for a corrected Playwright command
// given the failure context of a broken one. Implementations are injected
// into the healing engine, so tests substitute a canned advisor and never
// touch the network.
package advisor

import (
	"context"
	"errors"
)

// ErrNoFix means the advisor could not produce a usable fix. Transport
// failures, empty replies, and malformed replies all collapse into this; the
// engine treats them identically (abort healing, report, keep results).
var ErrNoFix = errors.New("advisor produced no usable fix")

// Request is the repair context handed to an advisor.
type Request struct {
	FailingCommand string
	UserIntent     string
	DOMSnapshot    string
	ErrorText      string
}

// Advisor proposes a replacement for a failing command. The returned string
// is a single line of Python that must be substitutable for FailingCommand.
type Advisor interface {
	Propose(ctx context.Context, req Request) (string, error)
}
