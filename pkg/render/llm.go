package render

import (
	"fmt"
	"strings"

	"github.com/mendtest/mend/mend"
)

// LLM renders a run result as terse plain text optimized for AI consumption.
// Zero ANSI codes, deterministic ordering, hard truncation of long reasons.
type LLM struct{}

// NewLLM creates an LLM renderer.
func NewLLM() *LLM {
	return &LLM{}
}

// Render formats the run result for machine consumption.
func (l *LLM) Render(res *mend.RunResult) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "RESULT: %s\n", res.State)
	fmt.Fprintf(&sb, "STATS: pass=%d fail=%d total=%d attempts=%d duration=%.1fs\n",
		res.Stats.Passed, res.Stats.Failed, res.Stats.Total,
		res.Summary.Attempts, res.Summary.TotalDuration)

	for _, log := range res.Logs {
		prefix := "  "
		if log.Outcome == "failed" || log.Outcome == "error" {
			prefix = "  FAIL "
		}
		sb.WriteString(prefix + log.Name)
		if log.Duration > 0 {
			fmt.Fprintf(&sb, " (%.1fs)", log.Duration)
		}
		sb.WriteString("\n")
		if log.Reason != "" {
			lines := strings.Split(log.Reason, "\n")
			max := 3
			if len(lines) < max {
				max = len(lines)
			}
			for _, line := range lines[:max] {
				sb.WriteString("    " + line + "\n")
			}
			if len(lines) > 3 {
				fmt.Fprintf(&sb, "    ... (%d more lines)\n", len(lines)-3)
			}
		}
	}

	if res.Healed() {
		fmt.Fprintf(&sb, "HEALING: %d fix(es)\n", len(res.HealingAttempts))
		for _, h := range res.HealingAttempts {
			fmt.Fprintf(&sb, "  attempt %d: %s\n", h.Attempt, h.UserIntent)
			fmt.Fprintf(&sb, "    - %s\n", h.FailingCommand)
			fmt.Fprintf(&sb, "    + %s\n", h.FixedCommand)
		}
	}

	if res.Err != "" {
		sb.WriteString("ERROR: " + res.Err + "\n")
	}
	return sb.String()
}
