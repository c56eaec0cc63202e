package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "runner.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if p := os.Getenv("RUNNER_CONFIG"); p != "" {
		path = p
	}
	return LoadFrom(path)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "RUNNER_PORT")
	setString(&cfg.Server.CORSOrigin, "RUNNER_CORS_ORIGIN")
	setDuration(&cfg.Server.ShutdownTimeout, "RUNNER_SHUTDOWN_TIMEOUT")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "RUNNER_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "RUNNER_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "RUNNER_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "RUNNER_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "RUNNER_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Logging.Level, "RUNNER_LOG_LEVEL")
	setString(&cfg.Logging.Service, "RUNNER_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "RUNNER_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "RUNNER_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "RUNNER_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "RUNNER_RATE_RPS")
	setInt(&cfg.Rate.Burst, "RUNNER_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "RUNNER_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "RUNNER_RATE_MAX_IDLE_TIME")

	// Auth
	setString(&cfg.Auth.JWTSecret, "RUNNER_JWT_SECRET")
	setString(&cfg.Auth.JWTAudience, "RUNNER_JWT_AUDIENCE")

	// Key material location
	setString(&cfg.Crypto.PrivateKeyEnv, "RUNNER_PGP_PRIVATE_KEY_ENV")
	setString(&cfg.Crypto.PassphraseEnv, "RUNNER_PGP_PASSPHRASE_ENV")

	// Generation
	setDuration(&cfg.Generation.Timeout, "RUNNER_GENERATION_TIMEOUT")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "RUNNER_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.ToolTTL, "RUNNER_CACHE_TOOL_TTL")

	// MCP
	setDuration(&cfg.MCP.Timeout, "RUNNER_MCP_TIMEOUT")

	// Telemetry
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.OTEL.Insecure, "OTEL_EXPORTER_OTLP_INSECURE")
	setFloat64(&cfg.OTEL.SampleRatio, "RUNNER_OTEL_SAMPLE_RATIO")

	// Invite
	setString(&cfg.Invite.AuthURL, "RUNNER_AUTH_URL")
	setString(&cfg.Invite.ServiceKey, "RUNNER_AUTH_SERVICE_KEY")
	setString(&cfg.Invite.RedirectTo, "RUNNER_INVITE_REDIRECT_TO")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.Generation.Timeout < 0 {
		return errors.New("generation.timeout must be >= 0")
	}
	if cfg.Crypto.PrivateKeyEnv == "" || cfg.Crypto.PassphraseEnv == "" {
		return errors.New("crypto.private_key_env and crypto.passphrase_env are required")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return errors.New("otel.sample_ratio must be within [0, 1]")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
