package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		Backend: BackendConfig{
			DSN: "sqlite:${HOME}/.config/kipple/history.db",
			Retry: RetryConfig{
				Backoff:    "linear",
				InitialMS:  1000,
				MaxMS:      30000,
				MaxRetries: 2,
			},
		},
		History: HistoryConfig{
			MaxItems:      200,
			MaxPinned:     20,
			RetentionDays: 30,
		},
		Capture: CaptureConfig{
			SpoolDir:           "${HOME}/.config/kipple/spool",
			DedupWindowSeconds: 10,
		},
		Purge: PurgeConfig{
			IntervalMinutes: 30,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9823",
		},
		Notify: NotifyConfig{
			Enabled: false,
			URL:     "nats://127.0.0.1:4222",
			Subject: "kipple.history.changes",
		},
		Logging: LoggingConfig{
			Level:  LogLevelInfo,
			Format: LogFormatText,
		},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
