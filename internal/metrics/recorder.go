package metrics

import "time"

// OutcomeLabel enumerates operation result categories for counters.
type OutcomeLabel string

const (
	OutcomeSuccess   OutcomeLabel = "success"
	OutcomeFailure   OutcomeLabel = "failure"
	OutcomeDuplicate OutcomeLabel = "duplicate"
	OutcomeInvalid   OutcomeLabel = "invalid"
)

// EvictionReason labels why an entry left the history without an explicit request.
type EvictionReason string

const (
	EvictionCapacity EvictionReason = "capacity"
	EvictionAge      EvictionReason = "age"
)

// Recorder defines observability hooks for history, capture, and notify metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc. All methods must
// be safe for nil receivers when using the NoopRecorder (allowing optional injection).
type Recorder interface {
	ObserveApplyDuration(backend string, d time.Duration, success bool)
	SetEntryCounts(pinned, unpinned int)
	IncEvicted(reason EvictionReason, n int)
	IncPinRefused()
	IncBackendRetry(backend string)
	IncCaptureResult(outcome OutcomeLabel)
	IncNotifyResult(outcome OutcomeLabel)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveApplyDuration(string, time.Duration, bool) {}
func (NoopRecorder) SetEntryCounts(int, int)                          {}
func (NoopRecorder) IncEvicted(EvictionReason, int)                   {}
func (NoopRecorder) IncPinRefused()                                   {}
func (NoopRecorder) IncBackendRetry(string)                           {}
func (NoopRecorder) IncCaptureResult(OutcomeLabel)                    {}
func (NoopRecorder) IncNotifyResult(OutcomeLabel)                     {}
