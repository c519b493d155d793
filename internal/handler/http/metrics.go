package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metrics
var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration tracks request latency with buckets covering both
	// local gate rejections (single-digit ms) and upstream completion and
	// synthesis calls (seconds).
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestsInFlight tracks the current number of HTTP requests being processed.
	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		},
	)

	httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// Business metrics
	chatQuestionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rigsy_chat_questions_total",
			Help: "Chat turns by gate outcome",
		},
		[]string{"outcome"},
	)

	chatDeflectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rigsy_chat_deflections_total",
			Help: "Chat turns deflected by the suspicious-input filter, by rule label",
		},
		[]string{"label"},
	)

	signupPromptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rigsy_signup_prompts_total",
			Help: "Sessions that exhausted their free questions and were shown the waitlist prompt",
		},
	)

	synthesesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rigsy_tts_syntheses_total",
			Help: "Speech synthesis requests by gate outcome",
		},
		[]string{"outcome"},
	)

	waitlistSignupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rigsy_waitlist_signups_total",
			Help: "Waitlist signup attempts by result",
		},
		[]string{"status"},
	)

	upstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rigsy_upstream_duration_seconds",
			Help:    "Duration of upstream completion, synthesis, and Notion calls",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"upstream"},
	)
)

// responseWriter wraps http.ResponseWriter to record status code and response size.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// routeLabel buckets request paths into the service's fixed route set so a
// client probing random URLs cannot blow up label cardinality.
func routeLabel(path string) string {
	switch {
	case path == "/api/chat", path == "/api/tts", path == "/api/waitlist":
		return path
	case path == "/health", path == "/ready", path == "/live", path == "/metrics":
		return path
	case strings.HasPrefix(path, "/api/"):
		return "/api/other"
	default:
		return "/other"
	}
}

// MetricsMiddleware records HTTP request metrics including duration, size, and status codes.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		path := routeLabel(r.URL.Path)

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		start := time.Now()
		next.ServeHTTP(rw, r)
		duration := time.Since(start).Seconds()

		status := strconv.Itoa(rw.statusCode)
		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
		httpResponseSize.WithLabelValues(r.Method, path).Observe(float64(rw.size))
	})
}

// MetricsHandler returns an HTTP handler for the Prometheus metrics endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordChatQuestion records one chat turn with its gate outcome
// (allowed, invalid, session-exhausted, daily-limited, minute-limited, deflected).
func RecordChatQuestion(outcome string) {
	chatQuestionsTotal.WithLabelValues(outcome).Inc()
}

// RecordDeflection records a filter deflection with the matching rule label.
func RecordDeflection(label string) {
	chatDeflectionsTotal.WithLabelValues(label).Inc()
}

// RecordSignupPrompt records that a session was shown the waitlist prompt.
func RecordSignupPrompt() {
	signupPromptsTotal.Inc()
}

// RecordSynthesis records one synthesis request with its gate outcome.
func RecordSynthesis(outcome string) {
	synthesesTotal.WithLabelValues(outcome).Inc()
}

// RecordWaitlistSignup records a waitlist signup attempt result ("ok" or an error class).
func RecordWaitlistSignup(status string) {
	waitlistSignupsTotal.WithLabelValues(status).Inc()
}

// RecordUpstreamDuration records the duration of an upstream call
// ("completion", "speech", "waitlist").
func RecordUpstreamDuration(upstream string, duration time.Duration) {
	upstreamDuration.WithLabelValues(upstream).Observe(duration.Seconds())
}
