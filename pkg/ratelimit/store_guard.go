package ratelimit

import (
	"log/slog"
	"sync"
	"time"
)

// GuardState represents the state of the store-guard circuit.
type GuardState int

const (
	// GuardClosed is normal operation: store checks run as usual.
	GuardClosed GuardState = iota

	// GuardOpen means the store has failed repeatedly. While open, the
	// limiter skips the store entirely and fails open.
	GuardOpen

	// GuardHalfOpen means the recovery timeout has elapsed and the next
	// check is allowed through to probe the store.
	GuardHalfOpen
)

// String returns the state name used in logs and metrics labels.
func (s GuardState) String() string {
	switch s {
	case GuardClosed:
		return "closed"
	case GuardOpen:
		return "open"
	case GuardHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// StoreGuardConfig configures a StoreGuard.
type StoreGuardConfig struct {
	// FailureThreshold is the number of consecutive store failures that
	// opens the circuit. Default: 5.
	FailureThreshold int

	// RecoveryTimeout is how long the circuit stays open before probing
	// the store again. Default: 30 seconds.
	RecoveryTimeout time.Duration

	// Clock abstracts time for tests. Default: SystemClock.
	Clock Clock

	// Metrics records state transitions. Default: NoOpMetrics.
	Metrics Metrics
}

// StoreGuard is a small circuit breaker protecting the limiter from a failing
// counter store. Unlike the upstream-API breakers, it fails OPEN: when the
// store is down, requests proceed uncounted rather than being rejected.
type StoreGuard struct {
	cfg StoreGuardConfig

	mu          sync.Mutex
	state       GuardState
	failures    int
	lastFailure time.Time
}

// NewStoreGuard creates a guard in the closed state.
func NewStoreGuard(cfg StoreGuardConfig) *StoreGuard {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 30 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = &SystemClock{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &NoOpMetrics{}
	}
	g := &StoreGuard{cfg: cfg, state: GuardClosed}
	cfg.Metrics.RecordCircuitState("counter", g.state.String())
	return g
}

// Allow reports whether the next store check should be attempted. Returns
// false only while the circuit is open and the recovery timeout has not
// elapsed; once it has, the guard moves to half-open and the probing check
// is attempted.
func (g *StoreGuard) Allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != GuardOpen {
		return true
	}
	if g.cfg.Clock.Now().Sub(g.lastFailure) >= g.cfg.RecoveryTimeout {
		g.transition(GuardHalfOpen)
		return true
	}
	return false
}

// RecordSuccess closes the circuit and clears the failure count.
func (g *StoreGuard) RecordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.failures = 0
	if g.state != GuardClosed {
		g.transition(GuardClosed)
	}
}

// RecordFailure counts a store failure and opens the circuit at the
// threshold. A failure during half-open reopens immediately.
func (g *StoreGuard) RecordFailure() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.failures++
	g.lastFailure = g.cfg.Clock.Now()

	if g.state == GuardHalfOpen || g.failures >= g.cfg.FailureThreshold {
		if g.state != GuardOpen {
			g.transition(GuardOpen)
		}
	}
}

// State returns the current circuit state.
func (g *StoreGuard) State() GuardState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// transition must be called with g.mu held.
func (g *StoreGuard) transition(to GuardState) {
	from := g.state
	g.state = to
	g.cfg.Metrics.RecordCircuitState("counter", to.String())
	slog.Warn("rate limit store guard state changed",
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.Int("consecutive_failures", g.failures))
}
