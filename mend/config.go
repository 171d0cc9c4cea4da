// Package mend is the self-healing test execution engine: it runs generated
// Playwright pytest scripts, detects repairable locator failures, asks an
// advisor for corrected commands, patches the script, and re-executes within
// configured retry budgets.
package mend

import (
	"fmt"
	"time"
)

// Mode selects how the engine reacts to failures.
type Mode string

const (
	// ModeHealing enables the full retry and repair loop.
	ModeHealing Mode = "heal"
	// ModeStrict executes the script exactly once, verbatim, with no
	// retries and no healing.
	ModeStrict Mode = "strict"
)

// Defaults for RunConfig fields left at their zero value.
const (
	DefaultManualRetries     = 1
	DefaultMaxHealingRetries = 2
	DefaultManualWait        = 10 * time.Second
	DefaultPytest            = "pytest"
)

// RunConfig are the knobs for a single engine run.
type RunConfig struct {
	// Mode defaults to ModeHealing.
	Mode Mode

	// ManualRetries is the budget of plain re-runs of the unchanged script
	// before healing starts. The first execution consumes one slot, so a
	// budget of N yields at most N-1 manual re-runs.
	ManualRetries int

	// MaxHealingRetries caps how many fixes may be applied in one run.
	MaxHealingRetries int

	// ManualWait is the pause before each manual re-run.
	ManualWait time.Duration

	// Pytest is the pytest executable to invoke.
	Pytest string

	// Timeout bounds one pytest invocation. Zero means no limit beyond the
	// caller's context.
	Timeout time.Duration
}

// Normalize fills zero fields with defaults and returns the result.
func (c RunConfig) Normalize() RunConfig {
	if c.Mode == "" {
		c.Mode = ModeHealing
	}
	if c.ManualRetries < 0 {
		c.ManualRetries = 0
	}
	if c.MaxHealingRetries < 0 {
		c.MaxHealingRetries = 0
	}
	if c.ManualWait <= 0 {
		c.ManualWait = DefaultManualWait
	}
	if c.Pytest == "" {
		c.Pytest = DefaultPytest
	}
	return c
}

// Validate rejects configurations the engine cannot run.
func (c RunConfig) Validate() error {
	switch c.Mode {
	case ModeHealing, ModeStrict, "":
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	return nil
}

// MaxAttempts is the hard ceiling on script executions for this config.
func (c RunConfig) MaxAttempts() int {
	if c.Mode == ModeStrict {
		return 1
	}
	return 1 + c.ManualRetries + c.MaxHealingRetries
}
