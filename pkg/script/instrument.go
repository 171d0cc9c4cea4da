package script

import (
	"fmt"
	"regexp"
	"strings"
)

// dumpMarker appears in every instrumented script. Instrument uses it to
// recognize already-wrapped sources and return them untouched, so wrapping
// stays idempotent even if a caller forgets to start from the pristine
// snapshot.
const dumpMarker = "_mend_dom_dump"

var (
	testDefPattern = regexp.MustCompile(`^def\s+(test_\w+)\s*\(([^)]*)\)\s*(->[^:]+)?:\s*$`)
	indentPattern  = regexp.MustCompile(`^[ \t]*`)
)

// Instrument wraps the body of every top-level pytest test function in a
// try/except block that dumps the live page DOM to dumpPath before
// re-raising. Non-test code (imports, fixtures, helpers) is left untouched.
// The dump write is best-effort: a failure to capture the DOM prints a
// warning inside the generated script and never masks the test's own
// exception.
//
// The wrapped body needs the Playwright page fixture; if a test function does
// not declare a `page` parameter, one is appended so the except block can
// reference it.
func Instrument(s Script, dumpPath string) Script {
	if strings.Contains(s.text, dumpMarker) {
		return s
	}

	lines := strings.Split(s.text, "\n")
	var out []string

	for i := 0; i < len(lines); i++ {
		m := testDefPattern.FindStringSubmatch(lines[i])
		if m == nil {
			out = append(out, lines[i])
			continue
		}

		body, next := collectBody(lines, i+1)
		if len(body) == 0 {
			out = append(out, lines[i])
			continue
		}

		indent := bodyIndent(body)
		out = append(out, ensurePageParam(lines[i], m[2]))
		out = append(out, indent+"try:")
		for _, bl := range body {
			if strings.TrimSpace(bl) == "" {
				out = append(out, bl)
			} else {
				out = append(out, indent+bl)
			}
		}
		out = append(out, dumpBlock(indent, dumpPath)...)
		i = next - 1
	}

	return Script{text: strings.Join(out, "\n")}
}

// collectBody gathers the indented body of a function starting at line start,
// returning the body lines and the index of the first line after the body.
func collectBody(lines []string, start int) ([]string, int) {
	end := start
	for end < len(lines) {
		l := lines[end]
		if strings.TrimSpace(l) == "" {
			end++
			continue
		}
		if indentPattern.FindString(l) == "" {
			break
		}
		end++
	}
	// Trailing blank lines belong between functions, not inside the body.
	body := lines[start:end]
	for len(body) > 0 && strings.TrimSpace(body[len(body)-1]) == "" {
		body = body[:len(body)-1]
		end--
	}
	return body, end
}

// bodyIndent returns the leading whitespace of the first non-blank body line.
func bodyIndent(body []string) string {
	for _, l := range body {
		if strings.TrimSpace(l) != "" {
			return indentPattern.FindString(l)
		}
	}
	return "    "
}

// ensurePageParam appends a `page` parameter to a test def line when the
// parameter list does not already include one.
func ensurePageParam(defLine, params string) string {
	for _, p := range strings.Split(params, ",") {
		name := strings.TrimSpace(p)
		if idx := strings.IndexAny(name, ":="); idx >= 0 {
			name = strings.TrimSpace(name[:idx])
		}
		if name == "page" {
			return defLine
		}
	}
	open := strings.Index(defLine, "(")
	closing := strings.LastIndex(defLine, ")")
	if open < 0 || closing < open {
		return defLine
	}
	inner := strings.TrimSpace(params)
	if inner == "" {
		return defLine[:open+1] + "page" + defLine[closing:]
	}
	return defLine[:open+1] + params + ", page" + defLine[closing:]
}

func dumpBlock(indent, dumpPath string) []string {
	in2 := indent + indent
	in3 := in2 + indent
	return []string{
		indent + "except Exception:",
		in2 + "try:",
		in3 + fmt.Sprintf("with open(%s, \"w\", encoding=\"utf-8\") as %s:", pyString(dumpPath), dumpMarker),
		in3 + indent + dumpMarker + ".write(page.content())",
		in2 + "except Exception as _mend_dump_err:",
		in3 + "print(f\"[mend] DOM capture failed: {_mend_dump_err}\")",
		in2 + "raise",
	}
}

// pyString renders s as a Python raw string literal so Windows paths survive.
func pyString(s string) string {
	return "r\"" + strings.ReplaceAll(s, "\"", "\\\"") + "\""
}
