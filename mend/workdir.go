package mend

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ScriptFileName is the name the script runs under inside the working
// directory. Trace frames reference it, so the extractor keys off it too.
const ScriptFileName = "test_script.py"

const (
	reportFileName = "report.json"
	dumpFileName   = "dom_dump.html"
)

// Workdir is the process-exclusive scratch directory for one run. It holds
// the current script version, the pytest JSON report, and the DOM dump.
// Nothing in it survives the run.
type Workdir struct {
	Root       string
	ScriptPath string
	ReportPath string
	DumpPath   string
}

// NewWorkdir creates a fresh working directory under the system temp root.
func NewWorkdir() (*Workdir, error) {
	root, err := os.MkdirTemp("", "mend-run-"+uuid.NewString()[:8]+"-")
	if err != nil {
		return nil, fmt.Errorf("creating run workdir: %w", err)
	}
	return &Workdir{
		Root:       root,
		ScriptPath: filepath.Join(root, ScriptFileName),
		ReportPath: filepath.Join(root, reportFileName),
		DumpPath:   filepath.Join(root, dumpFileName),
	}, nil
}

// WriteScript replaces the on-disk script with the given source.
func (w *Workdir) WriteScript(text string) error {
	if err := os.WriteFile(w.ScriptPath, []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing script: %w", err)
	}
	return nil
}

// ClearArtifacts removes the report and DOM dump left by a previous attempt
// so a new attempt never reads stale state.
func (w *Workdir) ClearArtifacts() {
	os.Remove(w.ReportPath)
	os.Remove(w.DumpPath)
}

// ReadDump returns the DOM snapshot captured by the instrumented script.
// A missing or empty dump is a normal condition (the except block never ran,
// or page.content() itself failed) and is reported as ok=false rather than an
// error.
func (w *Workdir) ReadDump() (string, bool) {
	data, err := os.ReadFile(w.DumpPath)
	if err != nil || len(strings.TrimSpace(string(data))) == 0 {
		return "", false
	}
	return string(data), true
}

// Cleanup removes the working directory and everything in it.
func (w *Workdir) Cleanup() {
	if w.Root != "" {
		os.RemoveAll(w.Root)
	}
}
