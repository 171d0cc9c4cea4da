package mend

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mendtest/mend/pkg/advisor"
)

const brokenScript = `import pytest

def test_login(page):
    # Click the login button
    page.click("#login")
`

const passStdout = "test_script.py::test_login PASSED                                        [100%]\n"

func failStdout(cmd string) string {
	return "test_script.py::test_login FAILED                                        [100%]\n" +
		"=================================== FAILURES ===================================\n" +
		"test_script.py:5: in test_login\n" +
		"    " + cmd + "\n" +
		"E   playwright._impl._errors.TimeoutError: Timeout 30000ms exceeded.\n" +
		"E   waiting for locator(\"#login\")\n"
}

type fakeStep struct {
	exitCode int
	stdout   string
	stderr   string
	dump     string
}

type fakeRunner struct {
	steps   []fakeStep
	scripts []string
}

func (f *fakeRunner) Run(_ context.Context, scriptText string, w *Workdir, attempt int) (*ExecutionAttempt, error) {
	f.scripts = append(f.scripts, scriptText)
	i := len(f.scripts) - 1
	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	st := f.steps[i]
	if st.dump != "" {
		if err := os.WriteFile(w.DumpPath, []byte(st.dump), 0o644); err != nil {
			return nil, err
		}
	}
	return &ExecutionAttempt{
		Index:     attempt,
		ExitCode:  st.exitCode,
		Stdout:    st.stdout,
		Stderr:    st.stderr,
		StartedAt: time.Now(),
		Duration:  10 * time.Millisecond,
	}, nil
}

type fakeAdvisor struct {
	fixes []string
	err   error
	calls []advisor.Request
}

func (f *fakeAdvisor) Propose(_ context.Context, req advisor.Request) (string, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return "", f.err
	}
	i := len(f.calls) - 1
	if i >= len(f.fixes) {
		i = len(f.fixes) - 1
	}
	return f.fixes[i], nil
}

func newTestEngine(runner Runner, adv advisor.Advisor) *Engine {
	e := NewEngine(EngineConfig{Runner: runner, Advisor: adv})
	e.sleep = func(time.Duration) {}
	return e
}

func TestEngine_When_FirstAttemptPasses_FinishesWithoutHealing(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{steps: []fakeStep{{exitCode: 0, stdout: passStdout}}}
	adv := &fakeAdvisor{fixes: []string{"never used"}}
	e := newTestEngine(runner, adv)

	res, err := e.Run(context.Background(), brokenScript, RunConfig{ManualRetries: 3, MaxHealingRetries: 3})
	require.NoError(t, err)

	assert.Equal(t, StateSuccess, res.State)
	assert.Len(t, runner.scripts, 1)
	assert.Empty(t, res.HealingAttempts)
	assert.Empty(t, adv.calls)
	assert.Equal(t, Stats{Passed: 1, Failed: 0, Total: 1}, res.Stats)
	assert.Empty(t, res.Err)
}

func TestEngine_When_SelectorFails_HealsAndSucceeds(t *testing.T) {
	t.Parallel()

	fix := `page.get_by_role("button", name="Login").click()`
	runner := &fakeRunner{steps: []fakeStep{
		{exitCode: 1, stdout: failStdout(`page.click("#login")`), dump: "<button>Login</button>"},
		{exitCode: 0, stdout: passStdout},
	}}
	adv := &fakeAdvisor{fixes: []string{fix}}
	e := newTestEngine(runner, adv)

	res, err := e.Run(context.Background(), brokenScript, RunConfig{ManualRetries: 0, MaxHealingRetries: 1})
	require.NoError(t, err)

	assert.Equal(t, StateSuccess, res.State)
	require.Len(t, runner.scripts, 2)
	require.Len(t, res.HealingAttempts, 1)

	heal := res.HealingAttempts[0]
	assert.Equal(t, 2, heal.Attempt)
	assert.Equal(t, `page.click("#login")`, heal.FailingCommand)
	assert.Equal(t, fix, heal.FixedCommand)
	assert.Equal(t, "Click the login button", heal.UserIntent)

	// The failing command must have been present in the script used for the
	// attempt before the fix, and the fix in the one after.
	assert.Contains(t, runner.scripts[0], heal.FailingCommand)
	assert.Contains(t, runner.scripts[1], fix)
	assert.NotContains(t, runner.scripts[1], `page.click("#login")`)

	assert.Equal(t, res.FinalScript, strings.Replace(brokenScript, `page.click("#login")`, fix, 1))
	require.Len(t, adv.calls, 1)
	assert.Equal(t, "<button>Login</button>", adv.calls[0].DOMSnapshot)
}

func TestEngine_When_FailureNotRepairable_AbortsWithoutCallingAdvisor(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{steps: []fakeStep{{
		exitCode: 2,
		stdout:   "test_script.py::test_login FAILED\n",
		stderr:   "E   SyntaxError: invalid syntax\n",
	}}}
	adv := &fakeAdvisor{fixes: []string{"unused"}}
	e := newTestEngine(runner, adv)

	res, err := e.Run(context.Background(), brokenScript, RunConfig{ManualRetries: 0, MaxHealingRetries: 2})
	require.NoError(t, err)

	assert.Equal(t, StateAborted, res.State)
	assert.Contains(t, res.Err, "repairable")
	assert.Empty(t, adv.calls, "advisor must never be consulted for non-repairable failures")
	assert.Len(t, runner.scripts, 1)
	assert.Equal(t, Stats{Passed: 0, Failed: 1, Total: 1}, res.Stats)
}

func TestEngine_When_AdvisorHasNoFix_AbortsWithLastResults(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{steps: []fakeStep{
		{exitCode: 1, stdout: failStdout(`page.click("#login")`), dump: "<html/>"},
	}}
	adv := &fakeAdvisor{err: advisor.ErrNoFix}
	e := newTestEngine(runner, adv)

	res, err := e.Run(context.Background(), brokenScript, RunConfig{ManualRetries: 0, MaxHealingRetries: 2})
	require.NoError(t, err)

	assert.Equal(t, StateAborted, res.State)
	assert.Contains(t, res.Err, "advisor")
	assert.Empty(t, res.HealingAttempts)
	assert.Equal(t, 1, res.Stats.Failed)
	assert.Len(t, adv.calls, 1)
}

func TestEngine_When_ManualRetriesConfigured_ReRunsUnchangedBeforeHealing(t *testing.T) {
	t.Parallel()

	fix := `page.get_by_role("button", name="Login").click()`
	runner := &fakeRunner{steps: []fakeStep{
		{exitCode: 1, stdout: failStdout(`page.click("#login")`), dump: "<html/>"},
		{exitCode: 1, stdout: failStdout(`page.click("#login")`), dump: "<html/>"},
		{exitCode: 0, stdout: passStdout},
	}}
	adv := &fakeAdvisor{fixes: []string{fix}}
	e := NewEngine(EngineConfig{Runner: runner, Advisor: adv})

	var waits []time.Duration
	e.sleep = func(d time.Duration) { waits = append(waits, d) }

	res, err := e.Run(context.Background(), brokenScript, RunConfig{
		ManualRetries:     2,
		MaxHealingRetries: 1,
		ManualWait:        3 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, StateSuccess, res.State)
	require.Len(t, runner.scripts, 3)
	assert.Equal(t, runner.scripts[0], runner.scripts[1], "manual retry must re-run the identical script")
	require.Len(t, res.HealingAttempts, 1)
	assert.Equal(t, 3, res.HealingAttempts[0].Attempt)
	assert.Equal(t, []time.Duration{3 * time.Second}, waits)
	assert.Len(t, adv.calls, 1)
}

func TestEngine_AttemptBound_IsNeverExceeded(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{steps: []fakeStep{
		{exitCode: 1, stdout: failStdout(`page.click("#login")`), dump: "<html/>"},
		{exitCode: 1, stdout: failStdout(`page.click("#btn-a")`), dump: "<html/>"},
		{exitCode: 1, stdout: failStdout(`page.click("#btn-b")`), dump: "<html/>"},
	}}
	adv := &fakeAdvisor{fixes: []string{`page.click("#btn-a")`, `page.click("#btn-b")`}}
	e := newTestEngine(runner, adv)

	cfg := RunConfig{ManualRetries: 0, MaxHealingRetries: 2}
	res, err := e.Run(context.Background(), brokenScript, cfg)
	require.NoError(t, err)

	assert.Equal(t, StateAborted, res.State)
	assert.Len(t, runner.scripts, cfg.MaxAttempts())
	assert.Len(t, res.HealingAttempts, 2)
	assert.Contains(t, res.Err, "attempt budget exhausted")
}

func TestEngine_HealingLog_IsMonotonicAgainstScriptVersions(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{steps: []fakeStep{
		{exitCode: 1, stdout: failStdout(`page.click("#login")`), dump: "<html/>"},
		{exitCode: 1, stdout: failStdout(`page.click("#btn-a")`), dump: "<html/>"},
		{exitCode: 0, stdout: passStdout},
	}}
	adv := &fakeAdvisor{fixes: []string{`page.click("#btn-a")`, `page.click("#btn-b")`}}
	e := newTestEngine(runner, adv)

	res, err := e.Run(context.Background(), brokenScript, RunConfig{ManualRetries: 0, MaxHealingRetries: 2})
	require.NoError(t, err)
	require.Len(t, res.HealingAttempts, 2)

	for i, heal := range res.HealingAttempts {
		assert.Contains(t, runner.scripts[i], heal.FailingCommand,
			"failing command must appear in the script version of the prior attempt")
		assert.Contains(t, runner.scripts[i+1], heal.FixedCommand)
	}
}

func TestEngine_StrictMode_RunsOnceVerbatim(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{steps: []fakeStep{
		{exitCode: 1, stdout: failStdout(`page.click("#login")`), dump: "<html/>"},
	}}
	adv := &fakeAdvisor{fixes: []string{"unused"}}
	e := newTestEngine(runner, adv)

	res, err := e.Run(context.Background(), brokenScript, RunConfig{
		Mode:              ModeStrict,
		ManualRetries:     5,
		MaxHealingRetries: 5,
	})
	require.NoError(t, err)

	assert.Equal(t, StateAborted, res.State)
	require.Len(t, runner.scripts, 1)
	assert.Equal(t, brokenScript, runner.scripts[0], "strict mode must not instrument the script")
	assert.Empty(t, res.HealingAttempts)
	assert.Empty(t, adv.calls)
}

func TestEngine_When_NoDOMSnapshot_AbortsHealing(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{steps: []fakeStep{
		{exitCode: 1, stdout: failStdout(`page.click("#login")`)},
	}}
	adv := &fakeAdvisor{fixes: []string{"unused"}}
	e := newTestEngine(runner, adv)

	res, err := e.Run(context.Background(), brokenScript, RunConfig{ManualRetries: 0, MaxHealingRetries: 1})
	require.NoError(t, err)

	assert.Equal(t, StateAborted, res.State)
	assert.Contains(t, res.Err, "DOM snapshot")
	assert.Empty(t, adv.calls)
}

func TestEngine_When_ScriptEmpty_ReturnsError(t *testing.T) {
	t.Parallel()

	e := newTestEngine(&fakeRunner{steps: []fakeStep{{}}}, &fakeAdvisor{})

	_, err := e.Run(context.Background(), "   \n", RunConfig{})
	assert.ErrorIs(t, err, ErrEmptyScript)
}

func TestEngine_Result_AlwaysCarriesContractFields(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{steps: []fakeStep{{exitCode: 1, stdout: "no test lines at all"}}}
	e := newTestEngine(runner, &fakeAdvisor{})

	res, err := e.Run(context.Background(), brokenScript, RunConfig{ManualRetries: 0, MaxHealingRetries: 0})
	require.NoError(t, err)

	assert.NotNil(t, res.HealingAttempts)
	assert.NotEmpty(t, res.Logs, "a run with no parseable output still synthesizes a suite entry")
	assert.Equal(t, res.Stats.Total, res.Stats.Passed+res.Stats.Failed)
	assert.Equal(t, 1, res.Summary.Attempts)

	data, err := res.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"healing_attempts": []`)
}
