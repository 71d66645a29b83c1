package config

import (
	"fmt"
	"strings"
)

// Validate checks cross-field invariants after defaults were applied.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.DSN) == "" {
		return fmt.Errorf("backend.dsn must not be empty")
	}
	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Listen) == "" {
		return fmt.Errorf("metrics.listen must be set when metrics.enabled is true")
	}
	if c.Notify.Enabled {
		if strings.TrimSpace(c.Notify.URL) == "" {
			return fmt.Errorf("notify.url must be set when notify.enabled is true")
		}
		if strings.TrimSpace(c.Notify.Subject) == "" {
			return fmt.Errorf("notify.subject must be set when notify.enabled is true")
		}
	}
	if err := c.Backend.Retry.Policy().Validate(); err != nil {
		return fmt.Errorf("backend.retry: %w", err)
	}
	return nil
}
