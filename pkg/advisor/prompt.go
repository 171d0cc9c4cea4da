package advisor

import (
	"fmt"
	"regexp"
	"strings"
)

// maxDOMBytes caps how much of the DOM snapshot goes into the prompt. Full
// page dumps of real applications routinely exceed model context limits.
const maxDOMBytes = 100_000

const systemPrompt = `You are an expert Playwright test engineer. A generated test failed because a locator no longer matches the page. You will receive the failing Python command, the author's intent, the error, and the page DOM captured at the moment of failure.

Reply with EXACTLY ONE corrected line of Python that fulfils the intent against the given DOM. Rules:
- Prefer semantic locators: get_by_role, get_by_label, get_by_placeholder, get_by_text, get_by_test_id.
- If the error is a strict mode violation, disambiguate (e.g. .first, nth(), or a more specific locator).
- Keep the same action (click stays click, fill stays fill) unless the intent demands otherwise.
- No explanation, no markdown, no code fences. One line of Python only.`

// buildPrompt renders the user message for a repair request.
func buildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "FAILING COMMAND:\n%s\n\n", req.FailingCommand)
	fmt.Fprintf(&b, "AUTHOR INTENT:\n%s\n\n", req.UserIntent)
	if req.ErrorText != "" {
		fmt.Fprintf(&b, "ERROR:\n%s\n\n", clipTail(req.ErrorText, 4_000))
	}
	fmt.Fprintf(&b, "PAGE DOM AT FAILURE:\n%s\n", clipHead(req.DOMSnapshot, maxDOMBytes))
	return b.String()
}

func clipHead(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n...[truncated]"
}

// clipTail keeps the end of the text, where pytest puts the actual error.
func clipTail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "...[truncated]\n" + s[len(s)-max:]
}

var fencePattern = regexp.MustCompile("(?s)^```(?:python|py)?\\s*\\n?(.*?)\\n?```$")

// cleanReply normalizes a model reply into a bare command. Markdown fences
// and surrounding whitespace are stripped and only the first non-empty line
// is kept.
func cleanReply(reply string) string {
	out := strings.TrimSpace(reply)
	if m := fencePattern.FindStringSubmatch(out); m != nil {
		out = strings.TrimSpace(m[1])
	}
	for _, line := range strings.Split(out, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
