package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Limiter answers "is this identity allowed one more action under policy P
// right now?" and records the action when it is.
//
// It wraps a CounterStore with input validation, metrics, and a store-guard
// circuit breaker. When the store fails repeatedly (a Redis outage, say) the
// breaker opens and the limiter fails open: requests are allowed without
// counting. That trades strict limiting for availability, which is the right
// call for an abuse deterrent in front of a marketing site.
type Limiter struct {
	store   CounterStore
	clock   Clock
	metrics Metrics
	guard   *StoreGuard
}

// LimiterOption configures optional Limiter collaborators.
type LimiterOption func(*Limiter)

// WithClock replaces the system clock, mainly for tests.
func WithClock(clock Clock) LimiterOption {
	return func(l *Limiter) { l.clock = clock }
}

// WithMetrics replaces the no-op metrics collector.
func WithMetrics(m Metrics) LimiterOption {
	return func(l *Limiter) { l.metrics = m }
}

// WithStoreGuard replaces the default store-failure circuit breaker.
func WithStoreGuard(g *StoreGuard) LimiterOption {
	return func(l *Limiter) { l.guard = g }
}

// NewLimiter creates a Limiter over the given store.
func NewLimiter(store CounterStore, opts ...LimiterOption) *Limiter {
	l := &Limiter{
		store:   store,
		clock:   &SystemClock{},
		metrics: &NoOpMetrics{},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.guard == nil {
		l.guard = NewStoreGuard(StoreGuardConfig{Metrics: l.metrics, Clock: l.clock})
	}
	return l
}

// CheckAndConsume checks key against policy and consumes one slot if allowed.
//
// The request that triggers a denial does not itself consume a slot, so a
// client hammering a full window does not push its reset time out.
func (l *Limiter) CheckAndConsume(ctx context.Context, policy Policy, key string) (*Decision, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, fmt.Errorf("rate limit key cannot be empty")
	}

	now := l.clock.Now()

	if !l.guard.Allow() {
		// Store is failing; let the request through uncounted.
		l.metrics.RecordAllowed(policy.Name)
		return &Decision{
			Policy:  policy.Name,
			Key:     key,
			Allowed: true,
			Count:   0,
			Limit:   policy.Limit,
			ResetAt: now.Add(policy.Window),
		}, nil
	}

	start := time.Now()
	decision, err := l.store.CheckAndConsume(ctx, policy, key, now)
	l.metrics.RecordCheckDuration(policy.Name, time.Since(start))

	if err != nil {
		l.guard.RecordFailure()
		slog.Warn("rate limit check failed, allowing request",
			slog.String("policy", policy.Name),
			slog.String("error", err.Error()))
		l.metrics.RecordAllowed(policy.Name)
		return &Decision{
			Policy:  policy.Name,
			Key:     key,
			Allowed: true,
			Count:   0,
			Limit:   policy.Limit,
			ResetAt: now.Add(policy.Window),
		}, nil
	}
	l.guard.RecordSuccess()

	if decision.Allowed {
		l.metrics.RecordAllowed(policy.Name)
	} else {
		l.metrics.RecordDenied(policy.Name)
	}
	return decision, nil
}

// Sweep removes expired counters from the store and records the result.
func (l *Limiter) Sweep(ctx context.Context) (int, error) {
	removed, err := l.store.Sweep(ctx, l.clock.Now())
	if err != nil {
		return 0, err
	}
	l.metrics.RecordSweep("counter", removed)
	if count, err := l.store.KeyCount(ctx); err == nil {
		l.metrics.SetActiveKeys("counter", count)
	}
	return removed, nil
}

// KeyCount reports the number of counters held by the underlying store.
func (l *Limiter) KeyCount(ctx context.Context) (int, error) {
	return l.store.KeyCount(ctx)
}
