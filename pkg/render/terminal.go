package render

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mendtest/mend/mend"
)

// Terminal renders a run result as styled terminal output via lipgloss.
type Terminal struct {
	theme Theme
	width int
	title cases.Caser
}

// NewTerminal creates a terminal renderer with the given theme.
func NewTerminal(theme Theme, width int) *Terminal {
	if width <= 0 {
		width = 80
	}
	return &Terminal{theme: theme, width: width, title: cases.Title(language.English)}
}

// Render formats the full run result for terminal display.
func (t *Terminal) Render(res *mend.RunResult) string {
	var sections []string
	sections = append(sections, t.renderHeader(res))
	if s := t.renderTests(res); s != "" {
		sections = append(sections, s)
	}
	if s := t.renderHealing(res); s != "" {
		sections = append(sections, s)
	}
	if s := t.renderFailures(res); s != "" {
		sections = append(sections, s)
	}
	if res.Err != "" {
		sections = append(sections, t.theme.Error.Render(t.theme.Icons.Fail+" "+res.Err))
	}
	return strings.Join(sections, "\n\n") + "\n"
}

func (t *Terminal) renderHeader(res *mend.RunResult) string {
	word := t.title.String(strings.ToLower(string(res.State)))
	style := t.theme.Error
	icon := t.theme.Icons.Fail
	if res.State == mend.StateSuccess {
		style = t.theme.Success
		icon = t.theme.Icons.Pass
	}

	head := style.Render(icon+" "+word) + t.theme.Muted.Render(fmt.Sprintf(
		"  %d passed, %d failed of %d  (%d attempt(s), %.1fs)",
		res.Stats.Passed, res.Stats.Failed, res.Stats.Total,
		res.Summary.Attempts, res.Summary.TotalDuration))
	return t.theme.Bold.Render("mend") + "  " + head
}

func (t *Terminal) renderTests(res *mend.RunResult) string {
	if len(res.Logs) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(t.theme.Bold.Render("Tests"))
	for _, log := range res.Logs {
		icon, style := t.outcomeStyle(log.Outcome)
		line := fmt.Sprintf("  %s %s", icon, t.clip(log.Name, t.width-20))
		if log.Duration > 0 {
			line += t.theme.Muted.Render(fmt.Sprintf(" %.1fs", log.Duration))
		}
		sb.WriteString("\n" + style.Render(line))
		if log.Reason != "" {
			sb.WriteString("\n" + t.theme.Muted.Render("      "+t.clip(firstLine(log.Reason), t.width-8)))
		}
	}
	return sb.String()
}

func (t *Terminal) renderHealing(res *mend.RunResult) string {
	if !res.Healed() {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(t.theme.Bold.Render(fmt.Sprintf("Healing (%d fix(es) applied)", len(res.HealingAttempts))))
	for _, h := range res.HealingAttempts {
		sb.WriteString("\n" + t.theme.Warning.Render(fmt.Sprintf("  %s attempt %d: %s", t.theme.Icons.Heal, h.Attempt, h.UserIntent)))
		sb.WriteString("\n" + t.theme.Error.Render("      - "+t.clip(h.FailingCommand, t.width-8)))
		sb.WriteString("\n" + t.theme.Success.Render("      + "+t.clip(h.FixedCommand, t.width-8)))
	}
	return sb.String()
}

func (t *Terminal) renderFailures(res *mend.RunResult) string {
	if len(res.Failures) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(t.theme.Bold.Render("Failures"))
	for _, f := range res.Failures {
		sb.WriteString("\n" + t.theme.Error.Render("  "+t.theme.Icons.Fail+" "+f.Name))
		if f.Message != "" {
			sb.WriteString("\n" + t.theme.Muted.Render("      "+t.clip(firstLine(f.Message), t.width-8)))
		}
	}
	return sb.String()
}

func (t *Terminal) outcomeStyle(outcome string) (string, interface{ Render(...string) string }) {
	switch outcome {
	case "passed":
		return t.theme.Icons.Pass, t.theme.Success
	case "failed", "error":
		return t.theme.Icons.Fail, t.theme.Error
	case "skipped":
		return t.theme.Icons.Skip, t.theme.Muted
	default:
		return t.theme.Icons.Bullet, t.theme.Muted
	}
}

// clip truncates by display width, not bytes, so wide runes keep columns
// aligned.
func (t *Terminal) clip(s string, max int) string {
	if max < 8 {
		max = 8
	}
	if runewidth.StringWidth(s) <= max {
		return s
	}
	return runewidth.Truncate(s, max-1, "…")
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
