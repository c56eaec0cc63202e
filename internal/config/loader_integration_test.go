package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Integration tests that exercise the full LoadFrom pipeline:
// defaults < YAML < environment variables.

func TestLoadFrom_FullHierarchy(t *testing.T) {
	// YAML sets port=9090, env overrides to 7070. Env must win.
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(yamlPath, []byte(`
server:
  port: "9090"
logging:
  level: "debug"
generation:
  timeout: 2m
`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("RUNNER_PORT", "7070")
	t.Setenv("RUNNER_LOG_LEVEL", "warn")

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("env should override YAML: got port %q, want 7070", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("env should override YAML: got level %q, want warn", cfg.Logging.Level)
	}
	if cfg.Generation.Timeout != 2*time.Minute {
		t.Errorf("YAML should override defaults: got timeout %v, want 2m", cfg.Generation.Timeout)
	}
}

func TestLoadFrom_EnvInvalidValues(t *testing.T) {
	// Invalid env values are silently ignored; defaults survive.
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(yamlPath, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("RUNNER_PG_MAX_CONNS", "notanumber")
	t.Setenv("RUNNER_BREAKER_TIMEOUT", "invalid-duration")
	t.Setenv("RUNNER_RATE_RPS", "abc")

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Postgres.MaxConns != 15 {
		t.Errorf("invalid int env should be ignored: got max_conns %d, want 15", cfg.Postgres.MaxConns)
	}
	if cfg.Breaker.Timeout.String() != "30s" {
		t.Errorf("invalid duration env should be ignored: got %v, want 30s", cfg.Breaker.Timeout)
	}
	if cfg.Rate.RequestsPerSecond != 10 {
		t.Errorf("invalid float env should be ignored: got %v, want 10", cfg.Rate.RequestsPerSecond)
	}
}

func TestLoadFrom_MissingYAMLFile(t *testing.T) {
	// Non-existent YAML => pure defaults, no error.
	cfg, err := LoadFrom("/nonexistent/path/to/config.yaml")
	if err != nil {
		t.Fatalf("missing YAML should not error, got %v", err)
	}

	if cfg.Logging.Level != "info" && os.Getenv("RUNNER_LOG_LEVEL") == "" {
		t.Errorf("expected default log level info, got %q", cfg.Logging.Level)
	}
}

func TestLoadFrom_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(yamlPath, []byte(`{{{invalid yaml`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFrom(yamlPath)
	if err == nil {
		t.Fatal("expected error for malformed YAML, got nil")
	}
}

func TestLoadFrom_ValidationAfterOverride(t *testing.T) {
	// YAML sets port to empty string => validation error.
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(yamlPath, []byte(`
server:
  port: ""
`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("RUNNER_PORT", "")

	if _, err := LoadFrom(yamlPath); err == nil {
		t.Fatal("expected validation error for empty port")
	}
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(yamlPath, []byte(`
cache:
  l1_max_size_mb: 64
`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RUNNER_CONFIG", yamlPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache.L1MaxSizeMB != 64 {
		t.Errorf("expected l1 size 64 from RUNNER_CONFIG file, got %d", cfg.Cache.L1MaxSizeMB)
	}
}
