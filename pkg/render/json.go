package render

import (
	"encoding/json"

	"github.com/mendtest/mend/mend"
)

// JSON renders a run result as structured JSON for automation.
type JSON struct{}

// NewJSON creates a JSON renderer.
func NewJSON() *JSON {
	return &JSON{}
}

// jsonOutput is the top-level JSON structure.
type jsonOutput struct {
	Version string          `json:"version"`
	Result  *mend.RunResult `json:"result"`
}

// Render formats the run result as JSON.
func (j *JSON) Render(res *mend.RunResult) string {
	out := jsonOutput{Version: "1.0", Result: res}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		errJSON, _ := json.Marshal(map[string]string{"error": err.Error()})
		return string(errJSON)
	}
	return string(data) + "\n"
}
