package mend

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mendtest/mend/pkg/pyreport"
)

// State is the engine's position in the run lifecycle. It is reported on the
// final result and streamed through run events.
type State string

const (
	StateRunning     State = "RUNNING"
	StateSuccess     State = "SUCCESS"
	StateManualRetry State = "MANUAL_RETRY"
	StateRepairing   State = "REPAIRING"
	StateAborted     State = "ABORTED"
)

// TestLog is one per-test line of a run's results.
type TestLog struct {
	Name     string  `json:"name"`
	Outcome  string  `json:"outcome"`
	Duration float64 `json:"duration"`
	Reason   string  `json:"reason,omitempty"`
}

// Stats aggregates test outcomes. Total always equals Passed+Failed; errored
// tests count as failed.
type Stats struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

// HealingAttempt is one applied fix. The slice of these on a RunResult is
// append-only and ordered by attempt.
type HealingAttempt struct {
	Attempt        int    `json:"attempt"`
	FailingCommand string `json:"failing_command"`
	FixedCommand   string `json:"fixed_command"`
	UserIntent     string `json:"user_intent"`
}

// DetailedFailure is the failure record for one failed test.
type DetailedFailure struct {
	Name     string  `json:"name"`
	Message  string  `json:"message"`
	Duration float64 `json:"duration"`
}

// ExecutionSummary is the run-level accounting block.
type ExecutionSummary struct {
	TotalDuration float64 `json:"total_duration"`
	Attempts      int     `json:"attempts"`
	StdoutPreview string  `json:"stdout_preview"`
	StderrPreview string  `json:"stderr_preview"`
}

// ExecutionAttempt is the raw record of one pytest invocation.
type ExecutionAttempt struct {
	Index     int
	ExitCode  int
	Stdout    string
	Stderr    string
	Report    *pyreport.Report
	StartedAt time.Time
	Duration  time.Duration
}

// Passed reports whether the attempt's pytest run succeeded outright.
func (a *ExecutionAttempt) Passed() bool {
	return a.ExitCode == 0
}

// CombinedOutput joins stdout and stderr for classification and extraction.
func (a *ExecutionAttempt) CombinedOutput() string {
	if a.Stderr == "" {
		return a.Stdout
	}
	return a.Stdout + "\n" + a.Stderr
}

// RunResult is the full outcome of one engine run. It is always populated
// from the final attempt, even when the run aborted.
type RunResult struct {
	State           State             `json:"state"`
	Logs            []TestLog         `json:"logs"`
	Stats           Stats             `json:"stats"`
	HealingAttempts []HealingAttempt  `json:"healing_attempts"`
	Failures        []DetailedFailure `json:"detailed_failures,omitempty"`
	Summary         ExecutionSummary  `json:"execution_summary"`
	FinalScript     string            `json:"final_script,omitempty"`
	Err             string            `json:"error,omitempty"`
}

// Healed reports whether any fix was applied during the run.
func (r *RunResult) Healed() bool {
	return len(r.HealingAttempts) > 0
}

// ToJSON renders the result as indented JSON.
func (r *RunResult) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding run result: %w", err)
	}
	return data, nil
}

const previewLimit = 2_000

// preview clips output for the execution summary, keeping the tail where
// pytest prints its verdict.
func preview(s string) string {
	if len(s) <= previewLimit {
		return s
	}
	return "..." + s[len(s)-previewLimit:]
}

// resultsFromAttempt converts one attempt's raw record into per-test logs,
// stats, and detailed failures. Preference order: JSON report, then verbose
// stdout lines, then a single synthesized suite-level entry from the exit
// code.
func resultsFromAttempt(att *ExecutionAttempt) ([]TestLog, Stats, []DetailedFailure) {
	if att.Report != nil && len(att.Report.Tests) > 0 {
		return resultsFromReport(att.Report)
	}
	if lines := pyreport.ParseVerbose(att.Stdout); len(lines) > 0 {
		return resultsFromLines(lines)
	}

	outcome := pyreport.OutcomeFailed
	reason := fmt.Sprintf("pytest exited with code %d and produced no parseable results", att.ExitCode)
	if att.Passed() {
		outcome = pyreport.OutcomePassed
		reason = ""
	}
	log := TestLog{Name: "test suite", Outcome: outcome, Duration: att.Duration.Seconds(), Reason: reason}
	stats := Stats{Total: 1}
	if att.Passed() {
		stats.Passed = 1
	} else {
		stats.Failed = 1
	}
	return []TestLog{log}, stats, nil
}

func resultsFromReport(r *pyreport.Report) ([]TestLog, Stats, []DetailedFailure) {
	logs := make([]TestLog, 0, len(r.Tests))
	var stats Stats
	var failures []DetailedFailure
	for _, test := range r.Tests {
		entry := TestLog{
			Name:     test.ShortName(),
			Outcome:  test.Outcome,
			Duration: test.TotalDuration(),
		}
		if test.Failed() {
			entry.Reason = test.FailureMessage()
			stats.Failed++
			failures = append(failures, DetailedFailure{
				Name:     test.ShortName(),
				Message:  test.FailureMessage(),
				Duration: test.TotalDuration(),
			})
		} else if test.Outcome == pyreport.OutcomePassed {
			stats.Passed++
		}
		logs = append(logs, entry)
	}
	stats.Total = stats.Passed + stats.Failed
	return logs, stats, failures
}

func resultsFromLines(lines []pyreport.LineResult) ([]TestLog, Stats, []DetailedFailure) {
	logs := make([]TestLog, 0, len(lines))
	var stats Stats
	var failures []DetailedFailure
	for _, lr := range lines {
		name := lr.NodeID
		logs = append(logs, TestLog{Name: name, Outcome: lr.Outcome})
		switch lr.Outcome {
		case pyreport.OutcomePassed:
			stats.Passed++
		case pyreport.OutcomeFailed, pyreport.OutcomeError:
			stats.Failed++
			failures = append(failures, DetailedFailure{Name: name, Message: "see run output"})
		}
	}
	stats.Total = stats.Passed + stats.Failed
	return logs, stats, failures
}
