package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local CounterStore backed by a mutex-guarded map.
//
// Counters are reset lazily: an expired entry is overwritten on the next
// check for the same key. Keys that stop sending requests linger until the
// next Sweep, so long-lived processes should schedule Sweep periodically.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]Counter
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]Counter),
	}
}

// entryKey namespaces a client key by policy so that independent policies
// never share counters.
func entryKey(policy Policy, key string) string {
	return policy.Name + ":" + key
}

// CheckAndConsume implements CounterStore.
//
// The check and the write happen under a single lock acquisition, so two
// concurrent requests for the last slot of a window cannot both be allowed.
func (s *MemoryStore) CheckAndConsume(ctx context.Context, policy Policy, key string, now time.Time) (*Decision, error) {
	k := entryKey(policy, key)

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[k]
	if !ok || c.Expired(now) {
		c = Counter{Count: 1, ResetAt: now.Add(policy.Window)}
		s.counters[k] = c
		return &Decision{
			Policy:  policy.Name,
			Key:     key,
			Allowed: true,
			Count:   1,
			Limit:   policy.Limit,
			ResetAt: c.ResetAt,
		}, nil
	}

	if c.Count >= policy.Limit {
		// The denied request does not consume a slot.
		return &Decision{
			Policy:  policy.Name,
			Key:     key,
			Allowed: false,
			Count:   c.Count,
			Limit:   policy.Limit,
			ResetAt: c.ResetAt,
		}, nil
	}

	c.Count++
	s.counters[k] = c
	return &Decision{
		Policy:  policy.Name,
		Key:     key,
		Allowed: true,
		Count:   c.Count,
		Limit:   policy.Limit,
		ResetAt: c.ResetAt,
	}, nil
}

// Sweep removes counters whose window expired before now.
func (s *MemoryStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, c := range s.counters {
		if c.Expired(now) {
			delete(s.counters, k)
			removed++
		}
	}
	return removed, nil
}

// KeyCount returns the number of counters currently held, live or expired.
func (s *MemoryStore) KeyCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters), nil
}
