package config

import "time"

// EffectiveMaxItems maps the configured ceiling to the store convention:
// negative means unbounded.
func (h HistoryConfig) EffectiveMaxItems() int {
	if h.MaxItems < 0 {
		return 0
	}
	return h.MaxItems
}

// EffectiveMaxPinned maps the configured pinned ceiling; negative means unbounded.
func (h HistoryConfig) EffectiveMaxPinned() int {
	if h.MaxPinned < 0 {
		return 0
	}
	return h.MaxPinned
}

// Retention returns the age limit as a duration; non-positive disables it.
func (h HistoryConfig) Retention() time.Duration {
	if h.RetentionDays <= 0 {
		return 0
	}
	return time.Duration(h.RetentionDays) * 24 * time.Hour
}

// DedupWindow returns the capture dedup window; non-positive disables dedup.
func (c CaptureConfig) DedupWindow() time.Duration {
	if c.DedupWindowSeconds <= 0 {
		return 0
	}
	return time.Duration(c.DedupWindowSeconds) * time.Second
}

// Interval returns the purge cadence; non-positive disables the job.
func (p PurgeConfig) Interval() time.Duration {
	if p.IntervalMinutes <= 0 {
		return 0
	}
	return time.Duration(p.IntervalMinutes) * time.Minute
}
