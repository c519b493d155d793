package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// failingStore always errors, to exercise fail-open behavior.
type failingStore struct {
	calls int
	mu    sync.Mutex
}

func (s *failingStore) CheckAndConsume(ctx context.Context, policy Policy, key string, now time.Time) (*Decision, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return nil, errors.New("store unavailable")
}

func (s *failingStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, errors.New("store unavailable")
}

func (s *failingStore) KeyCount(ctx context.Context) (int, error) {
	return 0, errors.New("store unavailable")
}

func (s *failingStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestLimiterValidation(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore())
	ctx := context.Background()

	t.Run("rejects empty key", func(t *testing.T) {
		if _, err := limiter.CheckAndConsume(ctx, testPolicy, ""); err == nil {
			t.Error("expected error for empty key")
		}
	})

	t.Run("rejects invalid policy", func(t *testing.T) {
		bad := Policy{Name: "bad", Limit: 0, Window: time.Minute}
		if _, err := limiter.CheckAndConsume(ctx, bad, "k"); err == nil {
			t.Error("expected error for zero limit")
		}
	})
}

func TestLimiterEnforcesLimit(t *testing.T) {
	clock := NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	limiter := NewLimiter(NewMemoryStore(), WithClock(clock))
	ctx := context.Background()
	policy := Policy{Name: "p", Limit: 2, Window: time.Minute}

	for i := 1; i <= 2; i++ {
		d, err := limiter.CheckAndConsume(ctx, policy, "k")
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
	}

	d, err := limiter.CheckAndConsume(ctx, policy, "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed {
		t.Error("third request should be denied")
	}

	clock.Advance(time.Minute)
	d, err = limiter.CheckAndConsume(ctx, policy, "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Allowed || d.Count != 1 {
		t.Errorf("after window expiry: allowed=%t count=%d, want allowed count 1", d.Allowed, d.Count)
	}
}

// TestLimiterConcurrentBurst fires limit+5 simultaneous requests from one
// identity against a fresh window and requires exactly limit admissions.
func TestLimiterConcurrentBurst(t *testing.T) {
	const extra = 5
	policy := Policy{Name: "burst", Limit: 10, Window: time.Minute}
	limiter := NewLimiter(NewMemoryStore())
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		mu      sync.Mutex
		allowed int
		denied  int
	)

	for i := 0; i < policy.Limit+extra; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			d, err := limiter.CheckAndConsume(ctx, policy, "same-client")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if d.Allowed {
				allowed++
			} else {
				denied++
			}
		}()
	}

	close(start)
	wg.Wait()

	if allowed != policy.Limit {
		t.Errorf("expected exactly %d allowed, got %d", policy.Limit, allowed)
	}
	if denied != extra {
		t.Errorf("expected exactly %d denied, got %d", extra, denied)
	}
}

func TestLimiterFailsOpenOnStoreError(t *testing.T) {
	store := &failingStore{}
	limiter := NewLimiter(store)
	ctx := context.Background()

	d, err := limiter.CheckAndConsume(ctx, testPolicy, "k")
	if err != nil {
		t.Fatalf("store errors must not surface to callers: %v", err)
	}
	if !d.Allowed {
		t.Error("request should be allowed when the store fails")
	}
}

func TestLimiterGuardSkipsFailingStore(t *testing.T) {
	store := &failingStore{}
	clock := NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	guard := NewStoreGuard(StoreGuardConfig{FailureThreshold: 3, RecoveryTimeout: time.Minute, Clock: clock})
	limiter := NewLimiter(store, WithClock(clock), WithStoreGuard(guard))
	ctx := context.Background()

	// Trip the guard.
	for i := 0; i < 3; i++ {
		if _, err := limiter.CheckAndConsume(ctx, testPolicy, "k"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if guard.State() != GuardOpen {
		t.Fatalf("guard state = %s, want open", guard.State())
	}

	before := store.callCount()
	for i := 0; i < 10; i++ {
		d, err := limiter.CheckAndConsume(ctx, testPolicy, "k")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !d.Allowed {
			t.Error("requests should fail open while guard is open")
		}
	}
	if got := store.callCount(); got != before {
		t.Errorf("store was called %d times while guard open, want 0", got-before)
	}

	// After the recovery timeout the store is probed again.
	clock.Advance(2 * time.Minute)
	if _, err := limiter.CheckAndConsume(ctx, testPolicy, "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.callCount() != before+1 {
		t.Error("expected a probing store call after recovery timeout")
	}
}

func TestStoreGuardRecovery(t *testing.T) {
	clock := NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	guard := NewStoreGuard(StoreGuardConfig{FailureThreshold: 2, RecoveryTimeout: 30 * time.Second, Clock: clock})

	guard.RecordFailure()
	if guard.State() != GuardClosed {
		t.Fatal("one failure below threshold must not open the guard")
	}
	guard.RecordFailure()
	if guard.State() != GuardOpen {
		t.Fatal("guard should open at the failure threshold")
	}
	if guard.Allow() {
		t.Error("open guard should block store checks")
	}

	clock.Advance(time.Minute)
	if !guard.Allow() {
		t.Error("guard should probe after the recovery timeout")
	}
	if guard.State() != GuardHalfOpen {
		t.Errorf("guard state = %s, want half-open", guard.State())
	}

	guard.RecordSuccess()
	if guard.State() != GuardClosed {
		t.Errorf("guard state = %s, want closed after successful probe", guard.State())
	}
}
