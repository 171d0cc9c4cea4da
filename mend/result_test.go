package mend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mendtest/mend/pkg/pyreport"
)

func TestResultsFromAttempt_When_ReportPresent_UsesIt(t *testing.T) {
	t.Parallel()

	report := &pyreport.Report{
		Summary: pyreport.Summary{Passed: 1, Failed: 1, Total: 2},
		Tests: []pyreport.Test{
			{
				NodeID:  "test_script.py::test_ok",
				Outcome: pyreport.OutcomePassed,
				Call:    &pyreport.Stage{Duration: 1.2, Outcome: pyreport.OutcomePassed},
			},
			{
				NodeID:  "test_script.py::test_broken",
				Outcome: pyreport.OutcomeFailed,
				Call: &pyreport.Stage{
					Duration: 30.0,
					Outcome:  pyreport.OutcomeFailed,
					Crash:    &pyreport.Crash{Message: "TimeoutError: boom"},
				},
			},
		},
	}
	att := &ExecutionAttempt{Index: 1, ExitCode: 1, Report: report}

	logs, stats, failures := resultsFromAttempt(att)

	require.Len(t, logs, 2)
	assert.Equal(t, "test_ok", logs[0].Name)
	assert.Equal(t, Stats{Passed: 1, Failed: 1, Total: 2}, stats)
	require.Len(t, failures, 1)
	assert.Equal(t, "TimeoutError: boom", failures[0].Message)
}

func TestResultsFromAttempt_When_NoReport_FallsBackToVerboseLines(t *testing.T) {
	t.Parallel()

	att := &ExecutionAttempt{
		Index:    1,
		ExitCode: 1,
		Stdout:   "test_script.py::test_a PASSED\ntest_script.py::test_b FAILED\n",
	}

	logs, stats, failures := resultsFromAttempt(att)

	require.Len(t, logs, 2)
	assert.Equal(t, Stats{Passed: 1, Failed: 1, Total: 2}, stats)
	require.Len(t, failures, 1)
	assert.Equal(t, "test_script.py::test_b", failures[0].Name)
}

func TestResultsFromAttempt_When_NothingParseable_SynthesizesSuiteEntry(t *testing.T) {
	t.Parallel()

	att := &ExecutionAttempt{Index: 1, ExitCode: 2, Stdout: "interpreter exploded", Duration: 3 * time.Second}

	logs, stats, _ := resultsFromAttempt(att)

	require.Len(t, logs, 1)
	assert.Equal(t, "test suite", logs[0].Name)
	assert.Equal(t, pyreport.OutcomeFailed, logs[0].Outcome)
	assert.Contains(t, logs[0].Reason, "exited with code 2")
	assert.Equal(t, Stats{Failed: 1, Total: 1}, stats)
}

func TestPreview_ClipsLongOutputKeepingTail(t *testing.T) {
	t.Parallel()

	long := make([]byte, previewLimit+500)
	for i := range long {
		long[i] = 'x'
	}
	long = append(long, []byte("THE VERDICT")...)

	got := preview(string(long))
	assert.LessOrEqual(t, len(got), previewLimit+3)
	assert.Contains(t, got, "THE VERDICT")
}
