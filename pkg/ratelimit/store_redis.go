package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// checkAndConsumeScript performs the fixed-window check-and-consume as a
// single server-side operation so concurrent instances cannot race past the
// limit. Returns {allowed, count, pttl_ms}.
var checkAndConsumeScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
  redis.call('SET', KEYS[1], 1, 'PX', ARGV[2])
  return {1, 1, tonumber(ARGV[2])}
end
current = tonumber(current)
if current >= tonumber(ARGV[1]) then
  return {0, current, redis.call('PTTL', KEYS[1])}
end
current = redis.call('INCR', KEYS[1])
return {1, current, redis.call('PTTL', KEYS[1])}
`)

// RedisStore is a CounterStore backed by Redis, for deployments where the
// gates run as multiple instances behind a load balancer and must share
// counters.
//
// Expiry is delegated to Redis key TTLs, so Sweep is a no-op.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisStoreConfig holds connection settings for RedisStore.
type RedisStoreConfig struct {
	// Addr is the Redis server address in host:port form. Required.
	Addr string

	// Password is the Redis AUTH password. Empty disables AUTH.
	Password string

	// DB is the Redis logical database number.
	DB int

	// KeyPrefix namespaces all counter keys. Default: "ratelimit".
	KeyPrefix string
}

// NewRedisStore connects to Redis and verifies the connection with a ping.
func NewRedisStore(ctx context.Context, cfg RedisStoreConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "ratelimit"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{client: client, keyPrefix: cfg.KeyPrefix}, nil
}

// Close releases the underlying Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) redisKey(policy Policy, key string) string {
	return s.keyPrefix + ":" + policy.Name + ":" + key
}

// CheckAndConsume implements CounterStore using a Lua script for atomicity
// across instances.
func (s *RedisStore) CheckAndConsume(ctx context.Context, policy Policy, key string, now time.Time) (*Decision, error) {
	res, err := checkAndConsumeScript.Run(ctx, s.client,
		[]string{s.redisKey(policy, key)},
		policy.Limit, policy.Window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis check failed for policy %q: %w", policy.Name, err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("redis check returned %d values, want 3", len(res))
	}

	allowed, count, pttl := res[0] == 1, int(res[1]), res[2]

	resetAt := now.Add(policy.Window)
	if pttl > 0 {
		resetAt = now.Add(time.Duration(pttl) * time.Millisecond)
	}

	return &Decision{
		Policy:  policy.Name,
		Key:     key,
		Allowed: allowed,
		Count:   count,
		Limit:   policy.Limit,
		ResetAt: resetAt,
	}, nil
}

// Sweep is a no-op: Redis expires counter keys via their TTLs.
func (s *RedisStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

// KeyCount counts counter keys under this store's prefix.
func (s *RedisStore) KeyCount(ctx context.Context) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.keyPrefix+":*", 1000).Result()
		if err != nil {
			return 0, fmt.Errorf("redis scan failed: %w", err)
		}
		total += len(keys)
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}
