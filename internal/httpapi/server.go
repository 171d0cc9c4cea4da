// Package httpapi exposes the engine over HTTP for frontends: run a script,
// inspect run logs. The surface mirrors what script-generation UIs already
// speak: POST /run_script plus the log-viewing endpoints.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mendtest/mend/internal/logtail"
	"github.com/mendtest/mend/mend"
)

// RunFunc executes one script with the given configuration. The server
// depends on this function instead of a concrete engine so handler tests run
// without pytest or an advisor.
type RunFunc func(ctx context.Context, script string, cfg mend.RunConfig, log *slog.Logger) (*mend.RunResult, error)

// Server holds the API's collaborators.
type Server struct {
	run      RunFunc
	logs     *logtail.Dir
	log      *slog.Logger
	defaults mend.RunConfig
}

// NewServer builds a Server. defaults seed the RunConfig fields a request
// leaves unset.
func NewServer(run RunFunc, logs *logtail.Dir, defaults mend.RunConfig, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{run: run, logs: logs, log: log, defaults: defaults.Normalize()}
}

// Router assembles the gin engine with all routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/run_script", s.handleRunScript())
	r.GET("/view_logs", s.handleViewLogs())
	r.GET("/list_logs", s.handleListLogs())
	r.GET("/logs/:filename", s.handleLogFile())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

type runScriptRequest struct {
	ScriptContent     string   `json:"script_content" binding:"required"`
	ExecutionMode     string   `json:"execution_mode"`
	ManualRetries     *int     `json:"manual_retries"`
	MaxHealingRetries *int     `json:"max_healing_retries"`
	ManualWaitSeconds *float64 `json:"manual_wait"`
}

type runScriptResponse struct {
	RunID string `json:"run_id"`
	*mend.RunResult
}

// toRunConfig overlays request fields on the server defaults. manual_wait
// arrives as float seconds for compatibility with existing frontends, and
// "specific_tests" is the legacy wire name for strict execution of
// hand-picked tests.
func (s *Server) toRunConfig(req runScriptRequest) mend.RunConfig {
	cfg := s.defaults
	switch req.ExecutionMode {
	case "strict", "specific_tests":
		cfg.Mode = mend.ModeStrict
	case "", "heal", "full_flow":
		cfg.Mode = mend.ModeHealing
	}
	if req.ManualRetries != nil {
		cfg.ManualRetries = *req.ManualRetries
	}
	if req.MaxHealingRetries != nil {
		cfg.MaxHealingRetries = *req.MaxHealingRetries
	}
	if req.ManualWaitSeconds != nil && *req.ManualWaitSeconds > 0 {
		cfg.ManualWait = time.Duration(*req.ManualWaitSeconds * float64(time.Second))
	}
	return cfg.Normalize()
}

func (s *Server) handleRunScript() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req runScriptRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}

		runID := uuid.NewString()
		runLog := s.log.With("run_id", runID)

		var closeLog func()
		if s.logs != nil {
			if f, err := s.logs.NewRunLog(time.Now()); err == nil {
				handler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
				runLog = slog.New(handler).With("run_id", runID)
				closeLog = func() { f.Close() }
			} else {
				s.log.Warn("cannot create run log file", "error", err)
			}
		}
		if closeLog != nil {
			defer closeLog()
		}

		cfg := s.toRunConfig(req)
		runLog.Info("run requested",
			"mode", cfg.Mode,
			"manual_retries", cfg.ManualRetries,
			"max_healing_retries", cfg.MaxHealingRetries)

		res, err := s.run(c.Request.Context(), req.ScriptContent, cfg, runLog)
		if err != nil {
			if errors.Is(err, mend.ErrEmptyScript) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			runLog.Error("run failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, runScriptResponse{RunID: runID, RunResult: res})
	}
}

// requireLogs rejects log requests on servers configured without a log
// directory. Reports whether handling may continue.
func (s *Server) requireLogs(c *gin.Context) bool {
	if s.logs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "log directory not configured"})
		return false
	}
	return true
}

func (s *Server) handleViewLogs() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.requireLogs(c) {
			return
		}
		name, data, err := s.logs.Latest()
		if errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no logs yet"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("X-Log-Name", name)
		c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
	}
}

func (s *Server) handleListLogs() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.requireLogs(c) {
			return
		}
		entries, err := s.logs.List()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": entries})
	}
}

func (s *Server) handleLogFile() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.requireLogs(c) {
			return
		}
		data, err := s.logs.Read(c.Param("filename"))
		if errors.Is(err, logtail.ErrBadName) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": "log not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
	}
}
