// Package config handles configuration loading for pmcore.
// It supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/bmcgauley/PM-Agents-sub001/internal/orchestrator/policy"
	"github.com/bmcgauley/PM-Agents-sub001/pkg/models"
)

// Config holds all configuration for pmcore.
type Config struct {
	Workers   WorkersConfig   `mapstructure:"workers"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts"`
	Budget    BudgetConfig    `mapstructure:"budget"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Debug     DebugConfig     `mapstructure:"debug"`
}

// WorkersConfig holds worker pool settings.
type WorkersConfig struct {
	MaxPerCapability int `mapstructure:"max_per_capability"`
}

// RetryConfig holds retry and backoff settings.
type RetryConfig struct {
	MaxRetries        int           `mapstructure:"max_retries"`
	BackoffInitial    time.Duration `mapstructure:"backoff_initial"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
	BackoffMax        time.Duration `mapstructure:"backoff_max"`
}

// BreakerConfig holds circuit-breaker settings.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
}

// TimeoutsConfig holds worker call deadline settings.
type TimeoutsConfig struct {
	Call       time.Duration `mapstructure:"call"`
	Multiplier float64       `mapstructure:"multiplier"`
	Ceiling    time.Duration `mapstructure:"ceiling"`
}

// BudgetConfig holds default run budget settings.
type BudgetConfig struct {
	// Run is the default wall-clock budget; zero disables the deadline.
	Run time.Duration `mapstructure:"run"`
	// CostUnits is the default cost budget; zero means unlimited.
	CostUnits float64 `mapstructure:"cost_units"`
	// PriorityFloor is the lowest priority whose dependency-skip is reported.
	PriorityFloor string `mapstructure:"priority_floor"`
}

// ProgressConfig holds progress reporting settings.
type ProgressConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	EventBuffer int           `mapstructure:"event_buffer"`
}

// DebugConfig holds debug logging settings.
type DebugConfig struct {
	// Log enables the .pmcore/logs debug log.
	Log bool `mapstructure:"log"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (PMCORE_*)
// 2. Project config (.pmcore.yaml in current directory or parent)
// 3. User config (~/.config/pmcore/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Merge project config (takes precedence)
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("PMCORE")
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("workers.max_per_capability", cfg.Workers.MaxPerCapability)
	v.Set("retry.max_retries", cfg.Retry.MaxRetries)
	v.Set("retry.backoff_initial", cfg.Retry.BackoffInitial.String())
	v.Set("retry.backoff_multiplier", cfg.Retry.BackoffMultiplier)
	v.Set("retry.backoff_max", cfg.Retry.BackoffMax.String())
	v.Set("breaker.failure_threshold", cfg.Breaker.FailureThreshold)
	v.Set("breaker.reset_timeout", cfg.Breaker.ResetTimeout.String())
	v.Set("timeouts.call", cfg.Timeouts.Call.String())
	v.Set("timeouts.multiplier", cfg.Timeouts.Multiplier)
	v.Set("timeouts.ceiling", cfg.Timeouts.Ceiling.String())
	v.Set("budget.run", cfg.Budget.Run.String())
	v.Set("budget.cost_units", cfg.Budget.CostUnits)
	v.Set("budget.priority_floor", cfg.Budget.PriorityFloor)
	v.Set("progress.interval", cfg.Progress.Interval.String())
	v.Set("progress.event_buffer", cfg.Progress.EventBuffer)
	v.Set("debug.log", cfg.Debug.Log)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// ToPolicy maps the configuration onto a run policy. Out-of-range values
// are clamped by the policy itself.
func (c *Config) ToPolicy() *policy.Config {
	p := policy.Default()

	p.Concurrency.MaxPerCapability = c.Workers.MaxPerCapability
	p.Retry.MaxRetries = c.Retry.MaxRetries
	p.Retry.BackoffInitial = c.Retry.BackoffInitial
	p.Retry.BackoffMultiplier = c.Retry.BackoffMultiplier
	p.Retry.BackoffMax = c.Retry.BackoffMax
	p.Breaker.FailureThreshold = c.Breaker.FailureThreshold
	p.Breaker.ResetTimeout = c.Breaker.ResetTimeout
	p.Timeout.Base = c.Timeouts.Call
	p.Timeout.Multiplier = c.Timeouts.Multiplier
	p.Timeout.Ceiling = c.Timeouts.Ceiling
	if c.Budget.PriorityFloor != "" {
		p.Escalation.PriorityFloor = models.Priority(c.Budget.PriorityFloor)
	}
	p.Progress.Interval = c.Progress.Interval
	p.Progress.EventBuffer = c.Progress.EventBuffer

	p.Validate()
	return p
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := policy.Default()

	v.SetDefault("workers.max_per_capability", d.Concurrency.MaxPerCapability)
	v.SetDefault("retry.max_retries", d.Retry.MaxRetries)
	v.SetDefault("retry.backoff_initial", d.Retry.BackoffInitial.String())
	v.SetDefault("retry.backoff_multiplier", d.Retry.BackoffMultiplier)
	v.SetDefault("retry.backoff_max", d.Retry.BackoffMax.String())
	v.SetDefault("breaker.failure_threshold", d.Breaker.FailureThreshold)
	v.SetDefault("breaker.reset_timeout", d.Breaker.ResetTimeout.String())
	v.SetDefault("timeouts.call", d.Timeout.Base.String())
	v.SetDefault("timeouts.multiplier", d.Timeout.Multiplier)
	v.SetDefault("timeouts.ceiling", d.Timeout.Ceiling.String())
	v.SetDefault("budget.run", "0s")
	v.SetDefault("budget.cost_units", 0.0)
	v.SetDefault("budget.priority_floor", string(d.Escalation.PriorityFloor))
	v.SetDefault("progress.interval", d.Progress.Interval.String())
	v.SetDefault("progress.event_buffer", d.Progress.EventBuffer)
	v.SetDefault("debug.log", false)
}

// getUserConfigDir returns the XDG config directory for pmcore.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "pmcore")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "pmcore")
	}
	return filepath.Join(home, ".config", "pmcore")
}

// findProjectConfig searches for .pmcore.yaml in the current directory and
// parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".pmcore.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	d := policy.Default()
	return &Config{
		Workers: WorkersConfig{
			MaxPerCapability: d.Concurrency.MaxPerCapability,
		},
		Retry: RetryConfig{
			MaxRetries:        d.Retry.MaxRetries,
			BackoffInitial:    d.Retry.BackoffInitial,
			BackoffMultiplier: d.Retry.BackoffMultiplier,
			BackoffMax:        d.Retry.BackoffMax,
		},
		Breaker: BreakerConfig{
			FailureThreshold: d.Breaker.FailureThreshold,
			ResetTimeout:     d.Breaker.ResetTimeout,
		},
		Timeouts: TimeoutsConfig{
			Call:       d.Timeout.Base,
			Multiplier: d.Timeout.Multiplier,
			Ceiling:    d.Timeout.Ceiling,
		},
		Budget: BudgetConfig{
			PriorityFloor: string(d.Escalation.PriorityFloor),
		},
		Progress: ProgressConfig{
			Interval:    d.Progress.Interval,
			EventBuffer: d.Progress.EventBuffer,
		},
	}
}
