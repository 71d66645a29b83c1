package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	applyDuration  *prom.HistogramVec
	entries        *prom.GaugeVec
	evicted        *prom.CounterVec
	pinRefused     prom.Counter
	backendRetries *prom.CounterVec
	captureResults *prom.CounterVec
	notifyResults  *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		applyDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "kipple",
			Name:      "apply_duration_seconds",
			Help:      "Duration of backend change-set applications",
			Buckets:   prom.DefBuckets,
		}, []string{"backend", "result"}),
		entries: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "kipple",
			Name:      "history_entries",
			Help:      "Current history size by pin state",
		}, []string{"state"}),
		evicted: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "kipple",
			Name:      "evicted_entries_total",
			Help:      "Entries removed by capacity or age policy",
		}, []string{"reason"}),
		pinRefused: prom.NewCounter(prom.CounterOpts{
			Namespace: "kipple",
			Name:      "pin_refused_total",
			Help:      "Pin requests refused at the pinned ceiling",
		}),
		backendRetries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "kipple",
			Name:      "backend_retries_total",
			Help:      "Retried backend applications after transient failures",
		}, []string{"backend"}),
		captureResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "kipple",
			Name:      "capture_results_total",
			Help:      "Capture ingestion results by outcome",
		}, []string{"outcome"}),
		notifyResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "kipple",
			Name:      "notify_results_total",
			Help:      "Change notification publish results by outcome",
		}, []string{"outcome"}),
	}
	reg.MustRegister(pr.applyDuration, pr.entries, pr.evicted, pr.pinRefused, pr.backendRetries, pr.captureResults, pr.notifyResults)
	return pr
}

func (p *PrometheusRecorder) ObserveApplyDuration(backend string, d time.Duration, success bool) {
	if p == nil || p.applyDuration == nil {
		return
	}
	res := "failure"
	if success {
		res = "success"
	}
	p.applyDuration.WithLabelValues(backend, res).Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetEntryCounts(pinned, unpinned int) {
	if p == nil || p.entries == nil {
		return
	}
	p.entries.WithLabelValues("pinned").Set(float64(pinned))
	p.entries.WithLabelValues("unpinned").Set(float64(unpinned))
}

func (p *PrometheusRecorder) IncEvicted(reason EvictionReason, n int) {
	if p == nil || p.evicted == nil || n <= 0 {
		return
	}
	p.evicted.WithLabelValues(string(reason)).Add(float64(n))
}

func (p *PrometheusRecorder) IncPinRefused() {
	if p == nil || p.pinRefused == nil {
		return
	}
	p.pinRefused.Inc()
}

func (p *PrometheusRecorder) IncBackendRetry(backend string) {
	if p == nil || p.backendRetries == nil {
		return
	}
	p.backendRetries.WithLabelValues(backend).Inc()
}

func (p *PrometheusRecorder) IncCaptureResult(outcome OutcomeLabel) {
	if p == nil || p.captureResults == nil {
		return
	}
	p.captureResults.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncNotifyResult(outcome OutcomeLabel) {
	if p == nil || p.notifyResults == nil {
		return
	}
	p.notifyResults.WithLabelValues(string(outcome)).Inc()
}
