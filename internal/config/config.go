// Package config loads and validates the kipple configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	History HistoryConfig `yaml:"history"`
	Capture CaptureConfig `yaml:"capture"`
	Purge   PurgeConfig   `yaml:"purge"`
	Metrics MetricsConfig `yaml:"metrics"`
	Notify  NotifyConfig  `yaml:"notify"`
	Logging LoggingConfig `yaml:"logging"`
}

// BackendConfig selects and tunes the storage backend.
type BackendConfig struct {
	// DSN selects the backend by scheme: file:, sqlite:, postgres:,
	// mongodb:, redis:, memory:. A bare path means a JSON file.
	DSN   string      `yaml:"dsn,omitempty"`
	Retry RetryConfig `yaml:"retry,omitempty"`
}

// HistoryConfig bounds the history store. Zero picks the default; negative
// values disable the bound.
type HistoryConfig struct {
	MaxItems      int `yaml:"max_items"`      // ceiling for unpinned entries
	MaxPinned     int `yaml:"max_pinned"`     // ceiling for pinned entries
	RetentionDays int `yaml:"retention_days"` // age limit for unpinned entries
}

// CaptureConfig controls spool directory ingestion.
type CaptureConfig struct {
	// SpoolDir is watched for dropped clip files; empty disables capture.
	SpoolDir           string `yaml:"spool_dir,omitempty"`
	DedupWindowSeconds int    `yaml:"dedup_window_seconds"`
}

// PurgeConfig schedules the age purge.
type PurgeConfig struct {
	IntervalMinutes int `yaml:"interval_minutes"`
}

// MetricsConfig exposes Prometheus metrics when enabled.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen,omitempty"`
}

// NotifyConfig publishes change events to NATS JetStream when enabled.
type NotifyConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// LoggingConfig shapes slog output.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// Load loads configuration from the specified file, expanding ${VAR}
// references from the environment after seeding it from .env files.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	var config Config
	config.applyDefaults()
	return &config
}

// loadEnvFiles seeds the environment from .env files without overriding
// variables that are already set.
func loadEnvFiles() {
	for _, p := range []string{".env", ".env.local"} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Backend.DSN == "" {
		c.Backend.DSN = defaultDSN()
	}
	c.Backend.Retry.applyDefaults()
	if c.History.MaxItems == 0 {
		c.History.MaxItems = 200
	}
	if c.History.MaxPinned == 0 {
		c.History.MaxPinned = 20
	}
	if c.History.RetentionDays == 0 {
		c.History.RetentionDays = 30
	}
	if c.Capture.DedupWindowSeconds == 0 {
		c.Capture.DedupWindowSeconds = 10
	}
	if c.Purge.IntervalMinutes == 0 {
		c.Purge.IntervalMinutes = 30
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = "127.0.0.1:9823"
	}
	if c.Notify.Subject == "" {
		c.Notify.Subject = "kipple.history.changes"
	}
	if c.Notify.URL == "" {
		c.Notify.URL = "nats://127.0.0.1:4222"
	}
	c.Logging.Level = NormalizeLogLevel(string(c.Logging.Level))
	c.Logging.Format = NormalizeLogFormat(string(c.Logging.Format))
}

// defaultDSN points at a JSON file under the user config directory.
func defaultDSN() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "kipple-history.json"
	}
	return filepath.Join(dir, "kipple", "history.json")
}
