package pyreport

import (
	"encoding/json"
	"fmt"
	"os"
)

// Parse decodes a pytest-json-report document.
func Parse(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding pytest json report: %w", err)
	}
	if r.Summary.Total == 0 {
		r.Summary.Total = r.Summary.Passed + r.Summary.Failed + r.Summary.Error + r.Summary.Skipped
	}
	return &r, nil
}

// Load reads and decodes a report file.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pytest json report: %w", err)
	}
	return Parse(data)
}
