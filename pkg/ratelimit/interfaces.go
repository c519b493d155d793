// Package ratelimit provides fixed-window request counting keyed by client
// identity.
//
// Each Policy (a named limit/window pair) has its own key space. Counters are
// created lazily on first use and reset lazily on first access after their
// window expires. Storage is pluggable: the in-memory store is the default for
// a single process, and the Redis store can be swapped in for multi-instance
// deployments without changing any gate logic.
package ratelimit

import (
	"context"
	"time"
)

// CounterStore is the storage backend for rate-limit counters.
//
// All methods must be safe for concurrent use. CheckAndConsume must perform
// its read-modify-write atomically per (policy, key) pair: two concurrent
// requests racing for the last slot of a window must not both be allowed.
type CounterStore interface {
	// CheckAndConsume looks up the counter for key under the given policy
	// and either consumes one slot (allowed) or leaves the counter
	// untouched (denied). A missing or expired counter is replaced with a
	// fresh one at count 1, which is always allowed.
	//
	// The returned Decision carries the post-increment count on allow and
	// the unchanged count on deny.
	CheckAndConsume(ctx context.Context, policy Policy, key string, now time.Time) (*Decision, error)

	// Sweep removes counters whose window expired before now and returns
	// how many were removed. Backends with native expiry (Redis TTLs) may
	// return 0 without doing any work.
	Sweep(ctx context.Context, now time.Time) (int, error)

	// KeyCount returns the number of counters currently held. Used for
	// health reporting and the active-keys gauge.
	KeyCount(ctx context.Context) (int, error)
}

// Metrics records rate-limit observability events.
//
// Implementations can use Prometheus or a no-op collector.
type Metrics interface {
	// RecordAllowed records an allowed check for the named policy.
	RecordAllowed(policy string)

	// RecordDenied records a denied check for the named policy.
	RecordDenied(policy string)

	// RecordCheckDuration records how long a store check took.
	RecordCheckDuration(policy string, d time.Duration)

	// SetActiveKeys records the current number of live counters.
	SetActiveKeys(store string, count int)

	// RecordSweep records the number of counters removed by a sweep.
	RecordSweep(store string, removed int)

	// RecordCircuitState records the store-guard circuit state.
	RecordCircuitState(store, state string)
}

// Clock abstracts time for testing. Production code uses SystemClock; tests
// inject a controllable fake.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// SystemClock is a Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current system time.
func (c *SystemClock) Now() time.Time {
	return time.Now()
}
