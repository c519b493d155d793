package ratelimit

import "time"

// NoOpMetrics is a Metrics implementation that discards everything. It is the
// default collector and keeps tests free of registry bookkeeping.
type NoOpMetrics struct{}

// RecordAllowed implements Metrics.
func (m *NoOpMetrics) RecordAllowed(policy string) {}

// RecordDenied implements Metrics.
func (m *NoOpMetrics) RecordDenied(policy string) {}

// RecordCheckDuration implements Metrics.
func (m *NoOpMetrics) RecordCheckDuration(policy string, d time.Duration) {}

// SetActiveKeys implements Metrics.
func (m *NoOpMetrics) SetActiveKeys(store string, count int) {}

// RecordSweep implements Metrics.
func (m *NoOpMetrics) RecordSweep(store string, removed int) {}

// RecordCircuitState implements Metrics.
func (m *NoOpMetrics) RecordCircuitState(store, state string) {}
