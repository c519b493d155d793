package ratelimit

import (
	"fmt"
	"time"
)

// Policy is a named (limit, window) pair. Policies with different names have
// fully independent counters, so one client key can be tracked under several
// policies at once (per-minute and daily, for example).
type Policy struct {
	// Name identifies the policy and namespaces its counters in the store.
	Name string

	// Limit is the maximum number of requests allowed per window. Must be >= 1.
	Limit int

	// Window is the fixed counting window. Must be > 0.
	Window time.Duration
}

// Validate returns an error if the policy is not usable.
func (p Policy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("policy name cannot be empty")
	}
	if p.Limit < 1 {
		return fmt.Errorf("policy %q: limit must be >= 1, got %d", p.Name, p.Limit)
	}
	if p.Window <= 0 {
		return fmt.Errorf("policy %q: window must be positive, got %s", p.Name, p.Window)
	}
	return nil
}

// Counter is the count-with-expiry state for one key within one window.
//
// A counter is either live (now before ResetAt, Count reflects requests so
// far this window) or expired (now at or past ResetAt), in which case the
// next access replaces it with {Count: 1, ResetAt: now + window}.
type Counter struct {
	Count   int
	ResetAt time.Time
}

// Expired reports whether the counter's window has ended at the given time.
func (c Counter) Expired(now time.Time) bool {
	return !now.Before(c.ResetAt)
}

// Decision is the result of a rate-limit check.
type Decision struct {
	// Policy is the name of the policy that produced this decision.
	Policy string

	// Key is the identity the check was performed for.
	Key string

	// Allowed reports whether the request may proceed.
	Allowed bool

	// Count is the number of requests recorded in the current window,
	// including this one when Allowed is true.
	Count int

	// Limit is the policy limit the check was made against.
	Limit int

	// ResetAt is when the current window ends.
	ResetAt time.Time
}

// Remaining returns how many requests are left in the current window.
func (d *Decision) Remaining() int {
	r := d.Limit - d.Count
	if r < 0 {
		return 0
	}
	return r
}

// RetryAfter returns how long the caller should wait before retrying.
// Returns 0 for allowed decisions or already-expired windows.
func (d *Decision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed {
		return 0
	}
	wait := d.ResetAt.Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// String returns a human-readable representation for logs.
func (d *Decision) String() string {
	return fmt.Sprintf("Decision{policy=%s key=%s allowed=%t count=%d/%d reset=%s}",
		d.Policy, d.Key, d.Allowed, d.Count, d.Limit, d.ResetAt.Format(time.RFC3339))
}
