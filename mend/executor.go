package mend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/mendtest/mend/pkg/pyreport"
)

// Runner executes one version of the script and reports the raw attempt.
// The engine depends on this interface, not on pytest, so tests drive the
// state machine with canned attempts.
type Runner interface {
	Run(ctx context.Context, scriptText string, w *Workdir, attempt int) (*ExecutionAttempt, error)
}

// PytestRunner invokes pytest with the json-report plugin inside the run's
// working directory.
type PytestRunner struct {
	Pytest    string
	ExtraArgs []string
	Timeout   time.Duration
	Log       *slog.Logger
}

// NewPytestRunner builds a runner from a RunConfig.
func NewPytestRunner(cfg RunConfig, log *slog.Logger) *PytestRunner {
	if log == nil {
		log = slog.Default()
	}
	return &PytestRunner{Pytest: cfg.Pytest, Timeout: cfg.Timeout, Log: log}
}

// Run writes the script into the workdir, executes pytest against it, and
// returns the attempt record. A non-zero exit is normal data, not an error;
// Run only errors when the script cannot be written or the context is done
// before launch.
func (r *PytestRunner) Run(ctx context.Context, scriptText string, w *Workdir, attempt int) (*ExecutionAttempt, error) {
	if err := w.WriteScript(scriptText); err != nil {
		return nil, err
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	args := []string{
		w.ScriptPath,
		"--json-report",
		"--json-report-file=" + w.ReportPath,
		"-v",
		"--capture=no",
		"--tb=long",
	}
	args = append(args, r.ExtraArgs...)

	pytest := r.Pytest
	if pytest == "" {
		pytest = DefaultPytest
	}

	cmd := exec.CommandContext(ctx, pytest, args...)
	cmd.Dir = w.Root

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.Log.Debug("executing pytest", "attempt", attempt, "cmd", pytest, "script", w.ScriptPath)

	started := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(started)

	att := &ExecutionAttempt{
		Index:     attempt,
		ExitCode:  exitCode(runErr),
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		StartedAt: started,
		Duration:  elapsed,
	}
	if runErr != nil && att.ExitCode == 127 {
		// pytest itself is missing; surface that in the attempt output so
		// the classifier sees a non-repairable failure.
		att.Stderr += fmt.Sprintf("\nmend: cannot run %q: %v\n", pytest, runErr)
	}

	if report, err := r.loadReport(w); err == nil {
		att.Report = report
	} else if !errors.Is(err, os.ErrNotExist) {
		r.Log.Warn("pytest json report unreadable, falling back to stdout parsing",
			"attempt", attempt, "error", err)
	}

	r.Log.Info("pytest finished",
		"attempt", attempt,
		"exit_code", att.ExitCode,
		"duration", elapsed,
		"report", att.Report != nil)
	return att, nil
}

func (r *PytestRunner) loadReport(w *Workdir) (*pyreport.Report, error) {
	if _, err := os.Stat(w.ReportPath); err != nil {
		return nil, err
	}
	return pyreport.Load(w.ReportPath)
}

// exitCode maps a cmd.Run error to a shell-style exit code.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if errors.Is(err, exec.ErrNotFound) {
		return 127
	}
	return 1
}
