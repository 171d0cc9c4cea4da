// Package failure decides whether a test failure is worth repairing and pulls
// the repair context (failing command, author intent) out of a pytest trace.
package failure

import "strings"

// DefaultSignatures are the failure fingerprints the healing loop treats as
// repairable. Anything that matches none of these is considered a structural
// failure (syntax error, crashed interpreter, missing dependency) that a
// locator fix cannot address.
var DefaultSignatures = []string{
	"timeouterror",
	"timeout",
	"waiting for",
	"strict mode violation",
	"element is not visible",
	"not visible",
	"resolved to",
	"assertionerror",
	"nameerror",
	"referenceerror",
}

// Classifier matches combined pytest output against a signature allowlist.
type Classifier struct {
	signatures []string
}

// NewClassifier builds a Classifier over the given signatures. A nil or empty
// list falls back to DefaultSignatures. Matching is case-insensitive
// substring containment, so signatures should be lowercase.
func NewClassifier(signatures []string) *Classifier {
	if len(signatures) == 0 {
		signatures = DefaultSignatures
	}
	lowered := make([]string, 0, len(signatures))
	for _, sig := range signatures {
		if s := strings.ToLower(strings.TrimSpace(sig)); s != "" {
			lowered = append(lowered, s)
		}
	}
	return &Classifier{signatures: lowered}
}

// Match returns the first signature found in the output and whether any
// signature matched at all.
func (c *Classifier) Match(output string) (string, bool) {
	lowered := strings.ToLower(output)
	for _, sig := range c.signatures {
		if strings.Contains(lowered, sig) {
			return sig, true
		}
	}
	return "", false
}

// Repairable reports whether the output carries any repairable signature.
func (c *Classifier) Repairable(output string) bool {
	_, ok := c.Match(output)
	return ok
}
