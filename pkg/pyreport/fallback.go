package pyreport

import (
	"regexp"
	"strings"
)

// LineResult is one test outcome recovered from verbose pytest stdout.
type LineResult struct {
	NodeID  string
	Outcome string
}

var verbosePattern = regexp.MustCompile(`(?m)^(\S+::\S+)\s+(PASSED|FAILED|ERROR|SKIPPED)\b`)

// ParseVerbose recovers per-test outcomes from `pytest -v` stdout. It is the
// fallback for runs where the JSON report was never written (interpreter
// crash, plugin missing). If the same node ID appears more than once the last
// outcome wins.
func ParseVerbose(stdout string) []LineResult {
	matches := verbosePattern.FindAllStringSubmatch(stdout, -1)
	if len(matches) == 0 {
		return nil
	}

	order := make([]string, 0, len(matches))
	latest := make(map[string]string, len(matches))
	for _, m := range matches {
		node := m[1]
		if _, seen := latest[node]; !seen {
			order = append(order, node)
		}
		latest[node] = strings.ToLower(m[2])
	}

	results := make([]LineResult, 0, len(order))
	for _, node := range order {
		results = append(results, LineResult{NodeID: node, Outcome: latest[node]})
	}
	return results
}
