package ratelimit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements Metrics using a dedicated Prometheus registry.
//
// A custom registry keeps the package self-contained and testable: each test
// can create its own instance without label collisions on the global
// registerer. Register the returned registry (or use Registry()) with the
// application's /metrics handler.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	checksTotal   *prometheus.CounterVec
	checkDuration *prometheus.HistogramVec
	activeKeys    *prometheus.GaugeVec
	sweptTotal    *prometheus.CounterVec
	circuitState  *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a PrometheusMetrics with its own registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
		checksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratelimit_checks_total",
			Help: "Total rate limit checks by policy and verdict",
		}, []string{"policy", "verdict"}),
		checkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "ratelimit_check_duration_seconds",
			Help: "Duration of rate limit store checks",
			// Checks are in-memory or one Redis round trip; anything
			// past 50ms indicates store trouble.
			Buckets: []float64{.0005, .001, .002, .005, .01, .025, .05, .1, .25, .5},
		}, []string{"policy"}),
		activeKeys: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ratelimit_active_keys",
			Help: "Number of counters currently held by the store",
		}, []string{"store"}),
		sweptTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratelimit_swept_counters_total",
			Help: "Total expired counters removed by sweeps",
		}, []string{"store"}),
		circuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ratelimit_store_guard_state",
			Help: "Store guard circuit state (0=closed, 1=open, 2=half-open)",
		}, []string{"store"}),
	}

	m.registry.MustRegister(
		m.checksTotal,
		m.checkDuration,
		m.activeKeys,
		m.sweptTotal,
		m.circuitState,
	)
	return m
}

// Registry returns the dedicated registry for exposure via promhttp.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordAllowed implements Metrics.
func (m *PrometheusMetrics) RecordAllowed(policy string) {
	m.checksTotal.WithLabelValues(policy, "allowed").Inc()
}

// RecordDenied implements Metrics.
func (m *PrometheusMetrics) RecordDenied(policy string) {
	m.checksTotal.WithLabelValues(policy, "denied").Inc()
}

// RecordCheckDuration implements Metrics.
func (m *PrometheusMetrics) RecordCheckDuration(policy string, d time.Duration) {
	m.checkDuration.WithLabelValues(policy).Observe(d.Seconds())
}

// SetActiveKeys implements Metrics.
func (m *PrometheusMetrics) SetActiveKeys(store string, count int) {
	m.activeKeys.WithLabelValues(store).Set(float64(count))
}

// RecordSweep implements Metrics.
func (m *PrometheusMetrics) RecordSweep(store string, removed int) {
	m.sweptTotal.WithLabelValues(store).Add(float64(removed))
}

// RecordCircuitState implements Metrics.
func (m *PrometheusMetrics) RecordCircuitState(store, state string) {
	var v float64
	switch state {
	case "open":
		v = 1
	case "half-open":
		v = 2
	}
	m.circuitState.WithLabelValues(store).Set(v)
}
