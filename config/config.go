// Package config loads server configuration for the retention engine.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (RETENTION_SERVER_PORT, RETENTION_ALERTS_GRACE_PERIOD_DAYS, ...)
//  2. YAML config file (--config flag)
//  3. Built-in defaults
//
// Environment variables drop the RETENTION_ prefix, are lowercased and split
// on the first underscore into section and field:
//
//	RETENTION_SERVER_PORT               -> server.port
//	RETENTION_DATABASE_PATH             -> database.path
//	RETENTION_ALERTS_WARRANTY_NOTICE_DAYS -> alerts.warranty_notice_days
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix marks environment variables read by Load.
	EnvPrefix = "RETENTION_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Alerts   AlertsConfig   `koanf:"alerts"`
	Logging  LoggingConfig  `koanf:"logging"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
}

// DatabaseConfig selects the store. An empty path or "memory" uses the
// in-memory store.
type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// AlertsConfig drives the background alert scanner.
type AlertsConfig struct {
	Enabled            bool          `koanf:"enabled"`
	GracePeriodDays    int           `koanf:"grace_period_days"`
	WarrantyNoticeDays int           `koanf:"warranty_notice_days"`
	ScanInterval       time.Duration `koanf:"scan_interval"`
}

// LoggingConfig holds zap settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, console
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

var defaultYAML = []byte(`
server:
  port: 8080
  read_timeout: 15s
  write_timeout: 15s
  idle_timeout: 60s
  shutdown_timeout: 10s
  allowed_origins: ["*"]
database:
  path: retention.db
alerts:
  enabled: true
  grace_period_days: 0
  warranty_notice_days: 30
  scan_interval: 1h
logging:
  level: info
  format: json
metrics:
  enabled: true
`)

// Default returns the built-in configuration, ignoring the environment.
func Default() *Config {
	cfg, err := load(nil, false)
	if err != nil {
		// defaultYAML is a constant; failing here is a programming error.
		panic(err)
	}
	return cfg
}

// Load reads defaults, then the YAML file at path (if path is non-empty),
// then RETENTION_* environment variables.
func Load(path string) (*Config, error) {
	var content []byte
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
		}

		if content, err = io.ReadAll(f); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return load(content, true)
}

func load(fileContent []byte, withEnv bool) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaultYAML), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if len(fileContent) > 0 {
		if err := k.Load(rawbytes.Provider(fileContent), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if withEnv {
		if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
			return nil, fmt.Errorf("failed to load environment variables: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envKey maps RETENTION_ALERTS_GRACE_PERIOD_DAYS to alerts.grace_period_days.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, found := strings.Cut(lower, "_")
	if !found {
		return lower
	}
	return section + "." + field
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be > 0"))
	}
	if c.Alerts.GracePeriodDays < 0 {
		errs = append(errs, fmt.Errorf("alerts.grace_period_days cannot be negative, got %d", c.Alerts.GracePeriodDays))
	}
	if c.Alerts.WarrantyNoticeDays < 0 {
		errs = append(errs, fmt.Errorf("alerts.warranty_notice_days cannot be negative, got %d", c.Alerts.WarrantyNoticeDays))
	}
	if c.Alerts.Enabled && c.Alerts.ScanInterval <= 0 {
		errs = append(errs, errors.New("alerts.scan_interval must be > 0 when alerts are enabled"))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// UseMemoryStore reports whether the in-memory store is configured.
func (d DatabaseConfig) UseMemoryStore() bool {
	return d.Path == "" || d.Path == "memory"
}
