// mend/projectconfig.go - Project-specific configuration via .mend.yaml
//
// Projects customize retry budgets, the repairable-failure signature list,
// the advisor model, and rendering without code changes by dropping a
// .mend.yaml next to their tests (or anywhere up the directory tree).
package mend

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectConfigFileName is the file looked up in the current and parent
// directories.
const ProjectConfigFileName = ".mend.yaml"

// ProjectConfig is the on-disk project configuration.
type ProjectConfig struct {
	// Theme name for terminal rendering: "default", "orca", "mono".
	Theme string `yaml:"theme"`

	Pytest struct {
		Path string   `yaml:"path"` // pytest executable (default: "pytest")
		Args []string `yaml:"args"` // extra arguments appended to every run
	} `yaml:"pytest"`

	Healing struct {
		ManualRetries     int      `yaml:"manual_retries"`
		MaxHealingRetries int      `yaml:"max_healing_retries"`
		ManualWait        string   `yaml:"manual_wait"` // Go duration, e.g. "10s"
		Signatures        []string `yaml:"signatures"`  // overrides the default repairable list
	} `yaml:"healing"`

	Advisor struct {
		Model   string `yaml:"model"`
		BaseURL string `yaml:"base_url"` // OpenAI-compatible endpoint override
	} `yaml:"advisor"`

	Server struct {
		Addr    string `yaml:"addr"`     // default ":5000"
		LogsDir string `yaml:"logs_dir"` // default "logs"
	} `yaml:"server"`
}

// DefaultProjectConfig returns a ProjectConfig with sensible defaults.
func DefaultProjectConfig() *ProjectConfig {
	cfg := &ProjectConfig{Theme: "default"}
	cfg.Pytest.Path = DefaultPytest
	cfg.Healing.ManualRetries = DefaultManualRetries
	cfg.Healing.MaxHealingRetries = DefaultMaxHealingRetries
	cfg.Healing.ManualWait = DefaultManualWait.String()
	cfg.Server.Addr = ":5000"
	cfg.Server.LogsDir = "logs"
	return cfg
}

// LoadProjectConfig loads configuration from .mend.yaml, falling back to
// defaults when the file is absent or unreadable.
func LoadProjectConfig() *ProjectConfig {
	cfg := DefaultProjectConfig()

	configPath := findConfigFile()
	if configPath == "" {
		return cfg
	}

	data, err := os.ReadFile(configPath) // #nosec G304 - config file path is controlled
	if err != nil {
		return cfg
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg
	}

	return cfg
}

// findConfigFile looks for .mend.yaml in current and parent directories.
func findConfigFile() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(dir, ProjectConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// ToRunConfig converts project settings into a RunConfig. Unparseable
// durations fall back to the default wait.
func (p *ProjectConfig) ToRunConfig() RunConfig {
	wait, err := time.ParseDuration(p.Healing.ManualWait)
	if err != nil || wait <= 0 {
		wait = DefaultManualWait
	}
	return RunConfig{
		ManualRetries:     p.Healing.ManualRetries,
		MaxHealingRetries: p.Healing.MaxHealingRetries,
		ManualWait:        wait,
		Pytest:            p.Pytest.Path,
	}.Normalize()
}
