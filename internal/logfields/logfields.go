package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyEntryID    = "entry_id"
	KeyBackend    = "backend"
	KeyCount      = "count"
	KeyKind       = "kind"
	KeyPath       = "path"
	KeySubject    = "subject"
	KeyAttempt    = "attempt"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func EntryID(id string) slog.Attr     { return slog.String(KeyEntryID, id) }
func Backend(name string) slog.Attr   { return slog.String(KeyBackend, name) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Kind(k string) slog.Attr         { return slog.String(KeyKind, k) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Subject(s string) slog.Attr      { return slog.String(KeySubject, s) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }

// Error renders an error value, tolerating nil.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
