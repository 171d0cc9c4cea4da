// Package pyreport parses the machine-readable output of pytest runs: the
// JSON document written by the pytest-json-report plugin, with a line-oriented
// fallback over verbose stdout for runs where the plugin never got to write
// its report.
package pyreport

import (
	"encoding/json"
	"strings"
)

// Outcome values as pytest-json-report emits them.
const (
	OutcomePassed  = "passed"
	OutcomeFailed  = "failed"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Report is the subset of a pytest-json-report document the engine consumes.
type Report struct {
	Created  float64 `json:"created"`
	Duration float64 `json:"duration"`
	ExitCode int     `json:"exitcode"`
	Summary  Summary `json:"summary"`
	Tests    []Test  `json:"tests"`
}

// Summary carries the report's aggregate counters.
type Summary struct {
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Error   int `json:"error"`
	Skipped int `json:"skipped"`
	Total   int `json:"total"`
}

// Test is one collected test with its per-stage results.
type Test struct {
	NodeID   string `json:"nodeid"`
	Outcome  string `json:"outcome"`
	Setup    *Stage `json:"setup,omitempty"`
	Call     *Stage `json:"call,omitempty"`
	Teardown *Stage `json:"teardown,omitempty"`
}

// Stage is one phase (setup, call, teardown) of a test.
type Stage struct {
	Duration float64  `json:"duration"`
	Outcome  string   `json:"outcome"`
	Crash    *Crash   `json:"crash,omitempty"`
	Longrepr Longrepr `json:"longrepr,omitempty"`
}

// Crash is the plugin's structured crash location.
type Crash struct {
	Path    string `json:"path"`
	Lineno  int    `json:"lineno"`
	Message string `json:"message"`
}

// Longrepr is a string in most reports but an object under some pytest
// configurations, so it decodes both and flattens to text.
type Longrepr string

func (l *Longrepr) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = Longrepr(s)
		return nil
	}
	var obj struct {
		Reprcrash struct {
			Message string `json:"message"`
		} `json:"reprcrash"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && obj.Reprcrash.Message != "" {
		*l = Longrepr(obj.Reprcrash.Message)
		return nil
	}
	// Unknown shape. Keep the raw JSON so nothing is silently lost.
	*l = Longrepr(data)
	return nil
}

// ShortName strips the file prefix from a node ID, leaving the test name.
func (t Test) ShortName() string {
	if idx := strings.Index(t.NodeID, "::"); idx >= 0 {
		return t.NodeID[idx+2:]
	}
	return t.NodeID
}

// TotalDuration sums the durations of all recorded stages.
func (t Test) TotalDuration() float64 {
	var d float64
	for _, st := range []*Stage{t.Setup, t.Call, t.Teardown} {
		if st != nil {
			d += st.Duration
		}
	}
	return d
}

// FailureMessage returns the most specific failure text available for the
// test: the call stage's crash message, then its longrepr, then the setup
// stage's, then "".
func (t Test) FailureMessage() string {
	for _, st := range []*Stage{t.Call, t.Setup, t.Teardown} {
		if st == nil {
			continue
		}
		if st.Crash != nil && st.Crash.Message != "" {
			return st.Crash.Message
		}
		if st.Longrepr != "" {
			return string(st.Longrepr)
		}
	}
	return ""
}

// Failed reports whether the test outcome is a failure or error.
func (t Test) Failed() bool {
	return t.Outcome == OutcomeFailed || t.Outcome == OutcomeError
}
