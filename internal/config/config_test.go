package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nissy/kipple-sub002/internal/retry"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kipple.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "backend: [this is not\n  a mapping")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "backend:\n  dsn: \"memory:\"\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "memory:", cfg.Backend.DSN)
	require.Equal(t, 200, cfg.History.MaxItems)
	require.Equal(t, 20, cfg.History.MaxPinned)
	require.Equal(t, 30, cfg.History.RetentionDays)
	require.Equal(t, 10, cfg.Capture.DedupWindowSeconds)
	require.Equal(t, 30, cfg.Purge.IntervalMinutes)
	require.Equal(t, "127.0.0.1:9823", cfg.Metrics.Listen)
	require.Equal(t, "kipple.history.changes", cfg.Notify.Subject)
	require.Equal(t, LogLevelInfo, cfg.Logging.Level)
	require.Equal(t, LogFormatText, cfg.Logging.Format)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("KIPPLE_TEST_DSN", "sqlite:/tmp/test.db")
	path := writeConfig(t, "backend:\n  dsn: \"${KIPPLE_TEST_DSN}\"\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "sqlite:/tmp/test.db", cfg.Backend.DSN)
}

func TestLoad_OverridesSurvive(t *testing.T) {
	path := writeConfig(t, `
backend:
  dsn: "postgres://localhost/kipple"
history:
  max_items: 50
  max_pinned: -1
  retention_days: 7
logging:
  level: DEBUG
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 50, cfg.History.MaxItems)
	require.Equal(t, -1, cfg.History.MaxPinned)
	require.Equal(t, 7, cfg.History.RetentionDays)
	require.Equal(t, LogLevelDebug, cfg.Logging.Level)
	require.Equal(t, LogFormatJSON, cfg.Logging.Format)
}

func TestValidate_EmptyDSN(t *testing.T) {
	cfg := Config{}
	cfg.Backend.Retry.applyDefaults()
	require.Error(t, cfg.Validate())
}

func TestValidate_MetricsNeedsListen(t *testing.T) {
	cfg := Default()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Listen = " "
	require.Error(t, cfg.Validate())
}

func TestValidate_NotifyNeedsURLAndSubject(t *testing.T) {
	cfg := Default()
	cfg.Notify.Enabled = true
	cfg.Notify.URL = ""
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Notify.Enabled = true
	cfg.Notify.Subject = ""
	require.Error(t, cfg.Validate())
}

func TestHistoryConfig_Derivations(t *testing.T) {
	h := HistoryConfig{MaxItems: -1, MaxPinned: 5, RetentionDays: 2}
	require.Zero(t, h.EffectiveMaxItems(), "negative means unbounded")
	require.Equal(t, 5, h.EffectiveMaxPinned())
	require.Equal(t, 48*time.Hour, h.Retention())

	h = HistoryConfig{RetentionDays: -1}
	require.Zero(t, h.Retention())
}

func TestCaptureAndPurge_Derivations(t *testing.T) {
	require.Equal(t, 10*time.Second, CaptureConfig{DedupWindowSeconds: 10}.DedupWindow())
	require.Zero(t, CaptureConfig{DedupWindowSeconds: -3}.DedupWindow())
	require.Equal(t, 15*time.Minute, PurgeConfig{IntervalMinutes: 15}.Interval())
	require.Zero(t, PurgeConfig{}.Interval())
}

func TestRetryConfig_Policy(t *testing.T) {
	var r RetryConfig
	r.applyDefaults()
	p := r.Policy()
	require.Equal(t, retry.BackoffLinear, p.Mode)
	require.Equal(t, time.Second, p.Initial)
	require.Equal(t, 30*time.Second, p.Max)
	require.Equal(t, 2, p.MaxRetries)

	custom := RetryConfig{Backoff: "Exponential", InitialMS: 100, MaxMS: 800, MaxRetries: 4}
	p = custom.Policy()
	require.Equal(t, retry.BackoffExponential, p.Mode)
	require.Equal(t, 100*time.Millisecond, p.Initial)
	require.Equal(t, 800*time.Millisecond, p.Max)
	require.Equal(t, 4, p.MaxRetries)
}

func TestNormalizeLogLevel(t *testing.T) {
	require.Equal(t, LogLevelDebug, NormalizeLogLevel(" Debug "))
	require.Equal(t, LogLevelWarn, NormalizeLogLevel("WARN"))
	require.Equal(t, LogLevelError, NormalizeLogLevel("error"))
	require.Equal(t, LogLevelInfo, NormalizeLogLevel("verbose"))
	require.Equal(t, LogLevelInfo, NormalizeLogLevel(""))
}

func TestSlogLevelMapping(t *testing.T) {
	require.Equal(t, slog.LevelDebug, LoggingConfig{Level: LogLevelDebug}.SlogLevel())
	require.Equal(t, slog.LevelInfo, LoggingConfig{Level: LogLevelInfo}.SlogLevel())
	require.Equal(t, slog.LevelWarn, LoggingConfig{Level: LogLevelWarn}.SlogLevel())
	require.Equal(t, slog.LevelError, LoggingConfig{Level: LogLevelError}.SlogLevel())
}

func TestInit_WritesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kipple.yaml")
	require.NoError(t, Init(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 200, cfg.History.MaxItems)
	require.False(t, cfg.Notify.Enabled)

	require.Error(t, Init(path, false), "existing file needs --force")
	require.NoError(t, Init(path, true))
}
