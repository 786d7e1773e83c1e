// Package config provides construction-time configuration for the
// orchestrator and its collaborators. Values are resolved once, in
// precedence order defaults < YAML file < environment, and are immutable
// for the orchestrator's lifetime.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration.
type Config struct {
	// MaxSteps bounds every actor's step counter; reaching it forces Stopped.
	MaxSteps int `yaml:"max_steps"`

	// MaxChildren bounds every actor's direct fan-out.
	MaxChildren int `yaml:"max_children"`

	// CycleDelay is the inter-cycle sleep, interruptible by inbox arrival.
	CycleDelay time.Duration `yaml:"cycle_delay"`

	// ContextBuffer is the size of each actor's telemetry ring.
	ContextBuffer int `yaml:"context_buffer"`

	// MaxErrors bounds each actor's recent-failure telemetry.
	MaxErrors int `yaml:"max_errors"`

	// MemoryMax is the hard entry cap of each actor's memory store.
	MemoryMax int `yaml:"memory_max"`

	// MemoryDecay is the linear decay window of memory retrieval scoring.
	MemoryDecay time.Duration `yaml:"memory_decay"`

	// RecallTopK is how many memories the loop recalls per cycle.
	RecallTopK int `yaml:"recall_top_k"`

	// FilesAllowed is the filesystem allowlist for file tools
	// ("all" or a comma-separated list of path prefixes).
	FilesAllowed []string `yaml:"files_allowed"`

	// ShellAllowed is the command allowlist for the shell tool.
	ShellAllowed []string `yaml:"shell_allowed"`

	// DashboardAddr is the web dashboard listen address ("" disables it).
	DashboardAddr string `yaml:"dashboard_addr"`

	// InjectDir is the drop-in injection directory ("" disables the watcher).
	InjectDir string `yaml:"inject_dir"`

	// Model is the hosted provider model id.
	Model string `yaml:"model"`
}

// Default returns the built-in defaults, mirroring the historical
// environment defaults of the runtime.
func Default() *Config {
	return &Config{
		MaxSteps:      12,
		MaxChildren:   16,
		CycleDelay:    200 * time.Millisecond,
		ContextBuffer: 10,
		MaxErrors:     20,
		MemoryMax:     200,
		MemoryDecay:   600 * time.Second,
		RecallTopK:    5,
		FilesAllowed:  []string{"all"},
		ShellAllowed:  []string{"all"},
		DashboardAddr: ":8000",
		InjectDir:     "",
		Model:         "claude-sonnet-4-20250514",
	}
}

// Load resolves configuration from defaults, an optional YAML file, and
// the environment, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays the historical environment variables.
func (c *Config) applyEnv() {
	if v, ok := envInt("MAX_SUB_STEPS"); ok {
		c.MaxSteps = v
	}
	if v, ok := envInt("MAX_CHILDREN"); ok {
		c.MaxChildren = v
	}
	if v, ok := envSeconds("CYCLE_DELAY"); ok {
		c.CycleDelay = v
	}
	if v, ok := envInt("FUNCTIONAL_MEMORY_MAX"); ok {
		c.MemoryMax = v
	}
	if v, ok := envSeconds("FUNCTIONAL_MEMORY_DECAY"); ok {
		c.MemoryDecay = v
	}
	if v := os.Getenv("FILES_ALLOWED"); v != "" {
		c.FilesAllowed = splitList(v)
	}
	if v := os.Getenv("SHELL_ALLOWED"); v != "" {
		c.ShellAllowed = splitList(v)
	}
	if v := os.Getenv("DASH_ADDR"); v != "" {
		c.DashboardAddr = v
	}
	if v := os.Getenv("INJECT_DIR"); v != "" {
		c.InjectDir = v
	}
	if v := os.Getenv("AXION_MODEL"); v != "" {
		c.Model = v
	}
}

// Validate rejects configurations the orchestrator cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.MaxSteps <= 0:
		return fmt.Errorf("max_steps must be positive, got %d", c.MaxSteps)
	case c.MaxChildren < 0:
		return fmt.Errorf("max_children must be non-negative, got %d", c.MaxChildren)
	case c.CycleDelay < 0:
		return fmt.Errorf("cycle_delay must be non-negative, got %s", c.CycleDelay)
	case c.MemoryMax <= 0:
		return fmt.Errorf("memory_max must be positive, got %d", c.MemoryMax)
	case c.MemoryDecay <= 0:
		return fmt.Errorf("memory_decay must be positive, got %s", c.MemoryDecay)
	case c.RecallTopK <= 0:
		return fmt.Errorf("recall_top_k must be positive, got %d", c.RecallTopK)
	case c.ContextBuffer <= 0:
		return fmt.Errorf("context_buffer must be positive, got %d", c.ContextBuffer)
	}
	return nil
}

func envInt(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envSeconds(name string) (time.Duration, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(v * float64(time.Second)), true
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
