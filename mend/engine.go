package mend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mendtest/mend/pkg/advisor"
	"github.com/mendtest/mend/pkg/failure"
	"github.com/mendtest/mend/pkg/script"
)

// ErrEmptyScript rejects runs with no script content.
var ErrEmptyScript = errors.New("script content is empty")

// Event is a progress notification emitted while a run advances. Renderers
// and log sinks subscribe via EngineConfig.OnEvent.
type Event struct {
	State       State
	Attempt     int
	MaxAttempts int
	Detail      string
}

// EngineConfig wires an Engine's collaborators. Runner is required; a nil
// Advisor disables healing (every repairable failure aborts with "no
// advisor").
type EngineConfig struct {
	Runner     Runner
	Advisor    advisor.Advisor
	Classifier *failure.Classifier
	Logger     *slog.Logger
	OnEvent    func(Event)
}

// Engine drives the run lifecycle: execute, classify, repair, re-execute,
// within the budgets of a RunConfig.
type Engine struct {
	runner     Runner
	advisor    advisor.Advisor
	classifier *failure.Classifier
	log        *slog.Logger
	onEvent    func(Event)
	sleep      func(time.Duration)
}

// NewEngine builds an Engine. Missing optional collaborators get defaults.
func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		runner:     cfg.Runner,
		advisor:    cfg.Advisor,
		classifier: cfg.Classifier,
		log:        cfg.Logger,
		onEvent:    cfg.OnEvent,
		sleep:      time.Sleep,
	}
	if e.classifier == nil {
		e.classifier = failure.NewClassifier(nil)
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	return e
}

func (e *Engine) emit(ev Event) {
	if e.onEvent != nil {
		e.onEvent(ev)
	}
}

// Run executes the script under the given configuration and returns the
// final result. The result is best-effort: aborted runs still carry the per
// -test results of the last attempt. Run errors only on invalid input or
// infrastructure failures (workdir creation, unwritable script).
func (e *Engine) Run(ctx context.Context, scriptText string, cfg RunConfig) (*RunResult, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if e.runner == nil {
		return nil, errors.New("engine has no runner")
	}

	current := script.New(scriptText)
	if current.IsEmpty() {
		return nil, ErrEmptyScript
	}

	w, err := NewWorkdir()
	if err != nil {
		return nil, err
	}
	defer w.Cleanup()

	var (
		last        *ExecutionAttempt
		totalDur    time.Duration
		abortReason string
		state       = StateRunning
		heals       = []HealingAttempt{}
		healsUsed   int
	)
	maxAttempts := cfg.MaxAttempts()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		w.ClearArtifacts()

		runScript := current
		if cfg.Mode != ModeStrict {
			runScript = script.Instrument(current, w.DumpPath)
		}

		e.emit(Event{State: StateRunning, Attempt: attempt, MaxAttempts: maxAttempts})
		e.log.Info("executing attempt", "attempt", attempt, "max_attempts", maxAttempts, "mode", cfg.Mode)

		att, runErr := e.runner.Run(ctx, runScript.Text(), w, attempt)
		if runErr != nil {
			return nil, fmt.Errorf("attempt %d: %w", attempt, runErr)
		}
		last = att
		totalDur += att.Duration

		if att.Passed() {
			state = StateSuccess
			break
		}
		if ctx.Err() != nil {
			abortReason = fmt.Sprintf("run cancelled: %v", ctx.Err())
			break
		}
		if attempt == maxAttempts {
			abortReason = fmt.Sprintf("attempt budget exhausted after %d attempt(s)", attempt)
			break
		}

		if attempt < cfg.ManualRetries {
			e.emit(Event{State: StateManualRetry, Attempt: attempt, MaxAttempts: maxAttempts})
			e.log.Info("manual retry", "attempt", attempt, "wait", cfg.ManualWait)
			e.sleep(cfg.ManualWait)
			continue
		}

		fixed, reason := e.repair(ctx, w, att, &current, &heals, attempt, cfg.MaxHealingRetries-healsUsed)
		if !fixed {
			abortReason = reason
			break
		}
		healsUsed++
	}

	if state != StateSuccess {
		state = StateAborted
		if abortReason == "" {
			abortReason = "attempt budget exhausted"
		}
	}

	logs, stats, failures := resultsFromAttempt(last)
	res := &RunResult{
		State:           state,
		Logs:            logs,
		Stats:           stats,
		HealingAttempts: heals,
		Failures:        failures,
		Summary: ExecutionSummary{
			TotalDuration: totalDur.Seconds(),
			Attempts:      last.Index,
			StdoutPreview: preview(last.Stdout),
			StderrPreview: preview(last.Stderr),
		},
		Err: abortReason,
	}
	if res.Healed() {
		res.FinalScript = current.Text()
	}

	e.emit(Event{State: state, Attempt: last.Index, MaxAttempts: maxAttempts, Detail: abortReason})
	e.log.Info("run finished",
		"state", state,
		"attempts", last.Index,
		"heals", len(heals),
		"passed", stats.Passed,
		"failed", stats.Failed)
	return res, nil
}

// repair attempts one healing cycle against the failed attempt. On success
// it swaps *current for the patched script and appends the healing record;
// otherwise it returns the abort reason.
func (e *Engine) repair(ctx context.Context, w *Workdir, att *ExecutionAttempt, current *script.Script, heals *[]HealingAttempt, attempt, budgetLeft int) (bool, string) {
	if budgetLeft <= 0 {
		return false, "healing budget exhausted"
	}

	e.emit(Event{State: StateRepairing, Attempt: attempt})

	combined := att.CombinedOutput()
	sig, repairable := e.classifier.Match(combined)
	if !repairable {
		return false, "failure does not match any repairable signature"
	}
	e.log.Info("repairable failure detected", "attempt", attempt, "signature", sig)

	rec, err := failure.Extract(combined, current.Text(), ScriptFileName)
	if err != nil {
		return false, fmt.Sprintf("extracting failure context: %v", err)
	}

	dom, ok := w.ReadDump()
	if !ok {
		return false, "no DOM snapshot was captured for the failure"
	}
	rec.DOMSnapshot = dom

	if e.advisor == nil {
		return false, "no advisor configured"
	}
	fix, err := e.advisor.Propose(ctx, advisor.Request{
		FailingCommand: rec.FailingCommand,
		UserIntent:     rec.UserIntent,
		DOMSnapshot:    rec.DOMSnapshot,
		ErrorText:      rec.Trace,
	})
	if err != nil {
		return false, fmt.Sprintf("advisor: %v", err)
	}

	patched, err := script.ApplyFix(*current, rec.FailingCommand, fix)
	if err != nil {
		return false, fmt.Sprintf("applying fix: %v", err)
	}

	*current = patched
	*heals = append(*heals, HealingAttempt{
		Attempt:        attempt + 1,
		FailingCommand: rec.FailingCommand,
		FixedCommand:   fix,
		UserIntent:     rec.UserIntent,
	})
	e.emit(Event{State: StateRepairing, Attempt: attempt, Detail: fix})
	e.log.Info("fix applied",
		"attempt", attempt,
		"failing_command", rec.FailingCommand,
		"fixed_command", fix)
	return true, ""
}
