package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "AIT_CONFIG"
	dbPathEnv     = "AIT_DB_PATH"
	logLevelEnv   = "AIT_LOG_LEVEL"
)

// Config holds process-level settings for the orchestration core.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Queue    QueueConfig    `yaml:"queue"`
	Provider ProviderConfig `yaml:"provider"`
	LogLevel string         `yaml:"logLevel"`
}

// DatabaseConfig describes the SQLite store location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// QueueConfig tunes the workers and retry schedule.
type QueueConfig struct {
	Workers        int           `yaml:"workers"`
	PollInterval   time.Duration `yaml:"pollInterval"`
	MaxAttempts    int           `yaml:"maxAttempts"`
	BackoffSeconds []int         `yaml:"backoffSeconds"`
}

// Backoff converts the configured schedule to durations.
func (q QueueConfig) Backoff() []time.Duration {
	out := make([]time.Duration, 0, len(q.BackoffSeconds))
	for _, s := range q.BackoffSeconds {
		out = append(out, time.Duration(s)*time.Second)
	}
	return out
}

// ProviderConfig bounds outbound AI calls.
type ProviderConfig struct {
	CallTimeout time.Duration `yaml:"callTimeout"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(dbPathEnv); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.LogLevel = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Database.Path != "" {
		base.Database = override.Database
	}
	if override.Queue.Workers > 0 {
		base.Queue.Workers = override.Queue.Workers
	}
	if override.Queue.PollInterval > 0 {
		base.Queue.PollInterval = override.Queue.PollInterval
	}
	if override.Queue.MaxAttempts > 0 {
		base.Queue.MaxAttempts = override.Queue.MaxAttempts
	}
	if len(override.Queue.BackoffSeconds) > 0 {
		base.Queue.BackoffSeconds = override.Queue.BackoffSeconds
	}
	if override.Provider.CallTimeout > 0 {
		base.Provider.CallTimeout = override.Provider.CallTimeout
	}
	if override.LogLevel != "" {
		base.LogLevel = override.LogLevel
	}
	return base
}

func defaultConfig() Config {
	return Config{
		Database: DatabaseConfig{Path: "data/aitcore.db"},
		Queue: QueueConfig{
			Workers:        2,
			PollInterval:   time.Second,
			MaxAttempts:    3,
			BackoffSeconds: []int{5, 10, 20},
		},
		Provider: ProviderConfig{CallTimeout: 60 * time.Second},
		LogLevel: "info",
	}
}
