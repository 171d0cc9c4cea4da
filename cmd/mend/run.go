package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mendtest/mend/mend"
	"github.com/mendtest/mend/pkg/advisor"
	"github.com/mendtest/mend/pkg/failure"
	"github.com/mendtest/mend/pkg/render"
)

type runFlags struct {
	mode              string
	manualRetries     int
	maxHealingRetries int
	manualWait        time.Duration
	pytest            string
	format            string
	theme             string
	model             string
	watch             bool
}

func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <script.py>",
		Short: "Execute a generated test script with self-healing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.mode, "mode", "", "execution mode: heal or strict")
	cmd.Flags().IntVar(&flags.manualRetries, "manual-retries", -1, "budget of plain re-runs before healing")
	cmd.Flags().IntVar(&flags.maxHealingRetries, "max-healing-retries", -1, "maximum fixes applied in one run")
	cmd.Flags().DurationVar(&flags.manualWait, "manual-wait", 0, "pause before each manual re-run")
	cmd.Flags().StringVar(&flags.pytest, "pytest", "", "pytest executable")
	cmd.Flags().StringVar(&flags.format, "format", "auto", "output format: auto, terminal, llm, json")
	cmd.Flags().StringVar(&flags.theme, "theme", "", "terminal theme: default, orca, mono")
	cmd.Flags().StringVar(&flags.model, "model", "", "advisor model name")
	cmd.Flags().BoolVar(&flags.watch, "watch", false, "show live progress while the run executes")
	return cmd
}

func runScript(cmd *cobra.Command, scriptPath string, flags runFlags) error {
	scriptText, err := os.ReadFile(scriptPath) // #nosec G304 - user-supplied script path
	if err != nil {
		return fmt.Errorf("reading script: %w", err)
	}

	project := mend.LoadProjectConfig()
	cfg := overlayRunConfig(project, flags)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := slog.Default()
	theme := render.ThemeByName(firstNonEmpty(flags.theme, project.Theme))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engineCfg := mend.EngineConfig{
		Runner:     mend.NewPytestRunner(cfg, log),
		Advisor:    buildAdvisor(project, flags, log),
		Classifier: nil,
		Logger:     log,
	}
	if len(project.Healing.Signatures) > 0 {
		engineCfg.Classifier = failure.NewClassifier(project.Healing.Signatures)
	}

	var res *mend.RunResult
	if flags.watch {
		res, err = runWatched(ctx, engineCfg, string(scriptText), cfg, theme)
	} else {
		res, err = mend.NewEngine(engineCfg).Run(ctx, string(scriptText), cfg)
	}
	if err != nil {
		return err
	}

	isTTY := term.IsTerminal(int(os.Stdout.Fd()))
	width := 80
	if isTTY {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
			width = w
		}
	}
	format := render.Resolve(render.Format(flags.format), isTTY)
	fmt.Fprint(cmd.OutOrStdout(), render.New(format, theme, width).Render(res))

	if res.State != mend.StateSuccess {
		return fmt.Errorf("run finished in state %s", res.State)
	}
	return nil
}

// runWatched wires the engine's events into the live TUI and runs both.
func runWatched(ctx context.Context, engineCfg mend.EngineConfig, scriptText string, cfg mend.RunConfig, theme render.Theme) (*mend.RunResult, error) {
	events := make(chan mend.Event, 32)
	outcomes := make(chan render.RunOutcome, 1)
	engineCfg.OnEvent = func(ev mend.Event) {
		select {
		case events <- ev:
		default:
		}
	}

	go func() {
		res, err := mend.NewEngine(engineCfg).Run(ctx, scriptText, cfg)
		close(events)
		outcomes <- render.RunOutcome{Result: res, Err: err}
	}()

	return render.Watch(ctx, theme, events, outcomes)
}

// overlayRunConfig starts from the project config and applies explicit flags.
func overlayRunConfig(project *mend.ProjectConfig, flags runFlags) mend.RunConfig {
	cfg := project.ToRunConfig()
	if flags.mode != "" {
		cfg.Mode = mend.Mode(flags.mode)
	}
	if flags.manualRetries >= 0 {
		cfg.ManualRetries = flags.manualRetries
	}
	if flags.maxHealingRetries >= 0 {
		cfg.MaxHealingRetries = flags.maxHealingRetries
	}
	if flags.manualWait > 0 {
		cfg.ManualWait = flags.manualWait
	}
	if flags.pytest != "" {
		cfg.Pytest = flags.pytest
	}
	return cfg.Normalize()
}

// buildAdvisor constructs the OpenAI advisor when an API key is available.
// Without a key healing degrades gracefully: repairable failures abort with a
// clear reason instead of crashing.
func buildAdvisor(project *mend.ProjectConfig, flags runFlags, log *slog.Logger) advisor.Advisor {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Warn("OPENAI_API_KEY not set, healing is disabled")
		return nil
	}
	opts := []advisor.OpenAIOption{advisor.WithLogger(log)}
	if model := firstNonEmpty(flags.model, project.Advisor.Model); model != "" {
		opts = append(opts, advisor.WithModel(model))
	}
	if project.Advisor.BaseURL != "" {
		opts = append(opts, advisor.WithBaseURL(apiKey, project.Advisor.BaseURL))
	}
	return advisor.NewOpenAI(apiKey, opts...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
