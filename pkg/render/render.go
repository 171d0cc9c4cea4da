// Package render provides output renderers for run results: styled terminal
// output, terse plain text for machine consumption, and JSON for automation.
package render

import (
	"github.com/mendtest/mend/mend"
)

// Format names an output renderer.
type Format string

const (
	FormatAuto     Format = "auto"
	FormatTerminal Format = "terminal"
	FormatLLM      Format = "llm"
	FormatJSON     Format = "json"
)

// Renderer converts a run result to formatted output.
type Renderer interface {
	Render(res *mend.RunResult) string
}

// Resolve maps FormatAuto to a concrete format based on whether output goes
// to a terminal. Explicit formats pass through.
func Resolve(format Format, isTTY bool) Format {
	if format != FormatAuto && format != "" {
		return format
	}
	if isTTY {
		return FormatTerminal
	}
	return FormatLLM
}

// New builds the renderer for a resolved format. Unknown formats get the
// plain-text renderer, which is safe everywhere.
func New(format Format, theme Theme, width int) Renderer {
	switch format {
	case FormatTerminal:
		return NewTerminal(theme, width)
	case FormatJSON:
		return NewJSON()
	default:
		return NewLLM()
	}
}
