package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(dbPathEnv, "")
	t.Setenv(logLevelEnv, "")
	cfg := Load()
	if cfg.Database.Path != "data/aitcore.db" {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
	if cfg.Queue.Workers != 2 || cfg.Queue.MaxAttempts != 3 {
		t.Errorf("queue = %+v", cfg.Queue)
	}
	if cfg.Provider.CallTimeout != 60*time.Second {
		t.Errorf("call timeout = %s", cfg.Provider.CallTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
database:
  path: /tmp/other.db
queue:
  workers: 4
  maxAttempts: 5
  backoffSeconds: [1, 2]
logLevel: debug
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configPathEnv, path)
	t.Setenv(dbPathEnv, "")
	t.Setenv(logLevelEnv, "")
	cfg := Load()
	if cfg.Database.Path != "/tmp/other.db" {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
	if cfg.Queue.Workers != 4 || cfg.Queue.MaxAttempts != 5 {
		t.Errorf("queue = %+v", cfg.Queue)
	}
	if len(cfg.Queue.BackoffSeconds) != 2 {
		t.Errorf("backoff = %v", cfg.Queue.BackoffSeconds)
	}
	// Values the file omits keep their defaults.
	if cfg.Queue.PollInterval != time.Second {
		t.Errorf("poll interval = %s, want default", cfg.Queue.PollInterval)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("database:\n  path: /tmp/file.db\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configPathEnv, path)
	t.Setenv(dbPathEnv, "/tmp/env.db")
	t.Setenv(logLevelEnv, "warn")
	cfg := Load()
	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("db path = %q, env must win", cfg.Database.Path)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("log level = %q, env must win", cfg.LogLevel)
	}
}

func TestLoad_UnreadableFileFallsBack(t *testing.T) {
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv(dbPathEnv, "")
	t.Setenv(logLevelEnv, "")
	cfg := Load()
	if cfg.Database.Path != "data/aitcore.db" {
		t.Errorf("db path = %q, want defaults on unreadable file", cfg.Database.Path)
	}
}

func TestQueueConfig_Backoff(t *testing.T) {
	q := QueueConfig{BackoffSeconds: []int{5, 10, 20}}
	got := q.Backoff()
	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}
	if len(got) != len(want) {
		t.Fatalf("len = %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("backoff[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
