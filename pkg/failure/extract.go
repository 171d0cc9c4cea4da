package failure

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoFailingCommand means the trace contained no recognizable action line,
// so there is nothing to hand to the repair advisor. Callers must treat this
// as "extraction failed", distinct from an empty trace.
var ErrNoFailingCommand = errors.New("no failing command found in trace")

// Record is the full repair context for one failure.
type Record struct {
	FailingCommand string
	UserIntent     string
	Trace          string
	DOMSnapshot    string
}

// actionPattern matches the source lines pytest echoes for a failing frame.
// The `>` marker is what long tracebacks put in front of the failing
// statement; short tracebacks indent the line under a file:lineno header.
var actionPattern = regexp.MustCompile(`(?m)^[ \t]*>?[ \t]+((?:await[ \t]+)?(?:page|expect|browser|context)\b[^\n]*)$`)

// ExtractCommand scans a pytest trace for the failing action. It first looks
// for frames that reference the generated script file and takes the source
// line under the last such frame; if none qualifies it falls back to the last
// bare action line anywhere in the trace. Multiple failures in one run mean
// the last one wins, matching the order pytest prints them.
func ExtractCommand(trace, scriptFile string) (string, error) {
	if cmd := lastFrameCommand(trace, scriptFile); cmd != "" {
		return cmd, nil
	}

	matches := actionPattern.FindAllStringSubmatch(trace, -1)
	if len(matches) == 0 {
		return "", ErrNoFailingCommand
	}
	return strings.TrimSpace(matches[len(matches)-1][1]), nil
}

// lastFrameCommand finds `<scriptFile>:<line>: in <func>` headers and returns
// the trimmed source line beneath the last one, or "" if no frame yields a
// plausible command.
func lastFrameCommand(trace, scriptFile string) string {
	if scriptFile == "" {
		return ""
	}
	framePattern := regexp.MustCompile(
		`(?m)^[^\n]*` + regexp.QuoteMeta(scriptFile) + `:\d+:[^\n]*\n[ \t>]*([^\n]+)`)

	var cmd string
	for _, m := range framePattern.FindAllStringSubmatch(trace, -1) {
		line := strings.TrimSpace(strings.TrimLeft(m[1], "> \t"))
		if line == "" || strings.HasPrefix(line, "E ") || strings.HasPrefix(line, "E\t") {
			continue
		}
		cmd = line
	}
	return cmd
}

// Intent recovers the author's intent for a failing command: the nearest `#`
// comment directly above the command's first occurrence in the script. When
// no comment precedes it, a generic description of the action is returned so
// the advisor always receives some intent.
func Intent(scriptText, failingCommand string) string {
	lines := strings.Split(scriptText, "\n")
	at := -1
	for i, l := range lines {
		if strings.Contains(l, failingCommand) {
			at = i
			break
		}
	}
	if at > 0 {
		for i := at - 1; i >= 0; i-- {
			trimmed := strings.TrimSpace(lines[i])
			if trimmed == "" {
				continue
			}
			if strings.HasPrefix(trimmed, "#") {
				return strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
			}
			break
		}
	}
	return fmt.Sprintf("Perform the action: %s", failingCommand)
}

// Extract builds the full repair Record for a trace: failing command, intent
// from the script source, and the trace itself. The DOM snapshot is filled in
// by the caller once it has read the dump file.
func Extract(trace, scriptText, scriptFile string) (Record, error) {
	cmd, err := ExtractCommand(trace, scriptFile)
	if err != nil {
		return Record{}, err
	}
	return Record{
		FailingCommand: cmd,
		UserIntent:     Intent(scriptText, cmd),
		Trace:          trace,
	}, nil
}
