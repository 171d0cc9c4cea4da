package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/mendtest/mend/internal/httpapi"
	"github.com/mendtest/mend/internal/logtail"
	"github.com/mendtest/mend/mend"
	"github.com/mendtest/mend/pkg/failure"
)

func newServeCmd() *cobra.Command {
	var (
		addr    string
		logsDir string
		model   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the engine over HTTP for frontends",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), addr, logsDir, model)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from .mend.yaml, else :5000)")
	cmd.Flags().StringVar(&logsDir, "logs-dir", "", "run log directory (default from .mend.yaml, else logs)")
	cmd.Flags().StringVar(&model, "model", "", "advisor model name")
	return cmd
}

func serve(ctx context.Context, addr, logsDir, model string) error {
	project := mend.LoadProjectConfig()
	if addr == "" {
		addr = project.Server.Addr
	}
	if logsDir == "" {
		logsDir = project.Server.LogsDir
	}

	log := slog.Default()
	logs, err := logtail.Open(logsDir)
	if err != nil {
		return err
	}

	adv := buildAdvisor(project, runFlags{model: model}, log)
	defaults := project.ToRunConfig()

	run := func(ctx context.Context, script string, cfg mend.RunConfig, runLog *slog.Logger) (*mend.RunResult, error) {
		engineCfg := mend.EngineConfig{
			Runner:  mend.NewPytestRunner(cfg, runLog),
			Advisor: adv,
			Logger:  runLog,
		}
		if len(project.Healing.Signatures) > 0 {
			engineCfg.Classifier = failure.NewClassifier(project.Healing.Signatures)
		}
		return mend.NewEngine(engineCfg).Run(ctx, script, cfg)
	}

	gin.SetMode(gin.ReleaseMode)
	server := httpapi.NewServer(run, logs, defaults, log)

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("http api listening", "addr", addr, "logs_dir", logs.Path())
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
}
