package completion

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CompletionMetricsRecorder defines the interface for recording
// completion-related metrics. Abstracting the recorder keeps the providers
// testable without a live Prometheus registry and reusable across providers.
type CompletionMetricsRecorder interface {
	// RecordDuration records the time taken for one completion API call.
	RecordDuration(provider string, duration time.Duration)

	// RecordOutcome increments the request counter for a provider with the
	// given outcome ("ok", "empty", or "error").
	RecordOutcome(provider, outcome string)

	// RecordLength records the length of a generated reply in characters.
	// Replies are spoken aloud, so short is the target.
	RecordLength(provider string, length int)
}

// PrometheusCompletionMetrics implements CompletionMetricsRecorder using
// Prometheus metrics on the default registry.
type PrometheusCompletionMetrics struct {
	durationHistogram *prometheus.HistogramVec
	requestCounter    *prometheus.CounterVec
	lengthHistogram   *prometheus.HistogramVec
}

var (
	prometheusMetricsInstance *PrometheusCompletionMetrics
	prometheusMetricsOnce     sync.Once
)

// NewPrometheusCompletionMetrics creates a Prometheus-based metrics recorder.
// Uses singleton pattern to avoid duplicate metric registration in tests.
func NewPrometheusCompletionMetrics() *PrometheusCompletionMetrics {
	prometheusMetricsOnce.Do(func() {
		prometheusMetricsInstance = &PrometheusCompletionMetrics{
			durationHistogram: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "rigsy_completion_duration_seconds",
				Help:    "Time taken to generate a chat completion via AI API",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
			}, []string{"provider"}),
			requestCounter: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "rigsy_completion_requests_total",
				Help: "Total completion API calls by provider and outcome",
			}, []string{"provider", "outcome"}),
			lengthHistogram: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "rigsy_completion_length_characters",
				Help:    "Distribution of reply lengths in characters (Unicode runes)",
				Buckets: []float64{25, 50, 100, 150, 200, 300, 500},
			}, []string{"provider"}),
		}
	})
	return prometheusMetricsInstance
}

// RecordDuration implements CompletionMetricsRecorder.RecordDuration
func (p *PrometheusCompletionMetrics) RecordDuration(provider string, duration time.Duration) {
	p.durationHistogram.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordOutcome implements CompletionMetricsRecorder.RecordOutcome
func (p *PrometheusCompletionMetrics) RecordOutcome(provider, outcome string) {
	p.requestCounter.WithLabelValues(provider, outcome).Inc()
}

// RecordLength implements CompletionMetricsRecorder.RecordLength
func (p *PrometheusCompletionMetrics) RecordLength(provider string, length int) {
	p.lengthHistogram.WithLabelValues(provider).Observe(float64(length))
}
