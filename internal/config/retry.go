package config

import (
	"strings"
	"time"

	"github.com/nissy/kipple-sub002/internal/retry"
)

// RetryConfig tunes backend retry behavior for transient I/O failures.
type RetryConfig struct {
	Backoff    string `yaml:"backoff,omitempty"` // fixed|linear|exponential
	InitialMS  int    `yaml:"initial_ms,omitempty"`
	MaxMS      int    `yaml:"max_ms,omitempty"`
	MaxRetries int    `yaml:"max_retries,omitempty"`
}

func (r *RetryConfig) applyDefaults() {
	def := retry.DefaultPolicy()
	if r.Backoff == "" {
		r.Backoff = string(def.Mode)
	}
	if r.InitialMS == 0 {
		r.InitialMS = int(def.Initial / time.Millisecond)
	}
	if r.MaxMS == 0 {
		r.MaxMS = int(def.Max / time.Millisecond)
	}
	if r.MaxRetries == 0 {
		r.MaxRetries = def.MaxRetries
	}
}

// Policy converts the section into a retry.Policy; unknown or out-of-range
// values fall back to the defaults.
func (r RetryConfig) Policy() retry.Policy {
	mode := normalizeBackoff(r.Backoff)
	return retry.NewPolicy(mode,
		time.Duration(r.InitialMS)*time.Millisecond,
		time.Duration(r.MaxMS)*time.Millisecond,
		r.MaxRetries)
}

// normalizeBackoff converts arbitrary user input (case-insensitive) into a
// typed mode, returning empty for unknown so NewPolicy keeps its default.
func normalizeBackoff(raw string) retry.BackoffMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(retry.BackoffFixed):
		return retry.BackoffFixed
	case string(retry.BackoffLinear):
		return retry.BackoffLinear
	case string(retry.BackoffExponential):
		return retry.BackoffExponential
	default:
		return ""
	}
}
