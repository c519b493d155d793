package config

import (
	"fmt"
	"log/slog"
	"time"

	"rigsy-gateway/pkg/ratelimit"
)

// GatePolicies holds the five rate limit policies enforced by the chat and
// speech gates, loaded from environment variables with product defaults.
type GatePolicies struct {
	ChatSession ratelimit.Policy
	ChatDaily   ratelimit.Policy
	ChatMinute  ratelimit.Policy
	TTSDaily    ratelimit.Policy
	TTSMinute   ratelimit.Policy
}

// StoreConfig selects and tunes the counter store backing the rate limiter.
type StoreConfig struct {
	// Backend is "memory" or "redis".
	Backend string

	// SweepInterval is how often expired counters are swept from the
	// memory store. Ignored for redis, which expires keys itself.
	SweepInterval time.Duration

	// GuardFailureThreshold is the consecutive-failure count that opens
	// the store guard.
	GuardFailureThreshold int

	// GuardRecoveryTimeout is how long the guard stays open before
	// probing the store again.
	GuardRecoveryTimeout time.Duration

	// Redis connection settings, used when Backend is "redis".
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string
}

// LoadGatePolicies loads the gate rate limit policies from environment
// variables.
//
// Each policy has a RATE_LIMIT_<NAME>_LIMIT and RATE_LIMIT_<NAME>_WINDOW
// pair; invalid values log a warning and fall back to the default rather
// than failing startup.
//
// Environment variables and defaults:
//   - RATE_LIMIT_CHAT_SESSION_LIMIT / _WINDOW: 3 per 30m
//   - RATE_LIMIT_CHAT_DAILY_LIMIT / _WINDOW: 20 per 24h
//   - RATE_LIMIT_CHAT_MINUTE_LIMIT / _WINDOW: 5 per 1m
//   - RATE_LIMIT_TTS_DAILY_LIMIT / _WINDOW: 30 per 24h
//   - RATE_LIMIT_TTS_MINUTE_LIMIT / _WINDOW: 5 per 1m
func LoadGatePolicies() *GatePolicies {
	return &GatePolicies{
		ChatSession: loadPolicy("CHAT_SESSION", "chat_session", 3, 30*time.Minute),
		ChatDaily:   loadPolicy("CHAT_DAILY", "chat_daily", 20, 24*time.Hour),
		ChatMinute:  loadPolicy("CHAT_MINUTE", "chat_minute", 5, time.Minute),
		TTSDaily:    loadPolicy("TTS_DAILY", "tts_daily", 30, 24*time.Hour),
		TTSMinute:   loadPolicy("TTS_MINUTE", "tts_minute", 5, time.Minute),
	}
}

// loadPolicy reads one limit/window pair and validates it, falling back to
// the supplied defaults on bad input.
func loadPolicy(envName, policyName string, defaultLimit int, defaultWindow time.Duration) ratelimit.Policy {
	limitKey := fmt.Sprintf("RATE_LIMIT_%s_LIMIT", envName)
	windowKey := fmt.Sprintf("RATE_LIMIT_%s_WINDOW", envName)

	limit := GetEnvInt(limitKey, defaultLimit)
	if limit <= 0 {
		slog.Warn("invalid rate limit, using default",
			slog.String("key", limitKey),
			slog.Int("value", limit),
			slog.Int("default", defaultLimit))
		limit = defaultLimit
	}

	window := GetEnvDuration(windowKey, defaultWindow)
	if err := ValidatePositiveDuration(window); err != nil {
		slog.Warn("invalid rate limit window, using default",
			slog.String("key", windowKey),
			slog.String("value", window.String()),
			slog.String("default", defaultWindow.String()),
			slog.String("error", err.Error()))
		window = defaultWindow
	}

	return ratelimit.Policy{Name: policyName, Limit: limit, Window: window}
}

// LoadStoreConfig loads the counter store configuration from environment
// variables.
//
// Environment variables:
//   - RATE_LIMIT_STORE: Store backend, "memory" or "redis" (default: memory)
//   - RATE_LIMIT_SWEEP_INTERVAL: Expired counter sweep interval (default: 5m)
//   - RATE_LIMIT_GUARD_FAILURE_THRESHOLD: Failures before the store guard
//     opens (default: 5)
//   - RATE_LIMIT_GUARD_RECOVERY_TIMEOUT: Guard open duration (default: 30s)
//   - REDIS_ADDR: Redis address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password (default: empty)
//   - REDIS_DB: Redis database number (default: 0)
//   - REDIS_KEY_PREFIX: Key namespace prefix (default: ratelimit)
//
// An unknown RATE_LIMIT_STORE value logs a warning and falls back to memory
// so a typo in deployment config degrades instead of taking the service down.
func LoadStoreConfig() *StoreConfig {
	cfg := &StoreConfig{
		Backend:        GetEnvString("RATE_LIMIT_STORE", "memory"),
		RedisAddr:      GetEnvString("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  GetEnvString("REDIS_PASSWORD", ""),
		RedisDB:        GetEnvInt("REDIS_DB", 0),
		RedisKeyPrefix: GetEnvString("REDIS_KEY_PREFIX", "ratelimit"),
	}

	if cfg.Backend != "memory" && cfg.Backend != "redis" {
		slog.Warn("unknown RATE_LIMIT_STORE, using memory",
			slog.String("value", cfg.Backend))
		cfg.Backend = "memory"
	}

	sweep := GetEnvDuration("RATE_LIMIT_SWEEP_INTERVAL", 5*time.Minute)
	if err := ValidatePositiveDuration(sweep); err != nil {
		slog.Warn("invalid RATE_LIMIT_SWEEP_INTERVAL, using default",
			slog.String("value", sweep.String()),
			slog.String("default", "5m"),
			slog.String("error", err.Error()))
		sweep = 5 * time.Minute
	}
	cfg.SweepInterval = sweep

	threshold := GetEnvInt("RATE_LIMIT_GUARD_FAILURE_THRESHOLD", 5)
	if threshold <= 0 {
		slog.Warn("invalid RATE_LIMIT_GUARD_FAILURE_THRESHOLD, using default",
			slog.Int("value", threshold),
			slog.Int("default", 5))
		threshold = 5
	}
	cfg.GuardFailureThreshold = threshold

	recovery := GetEnvDuration("RATE_LIMIT_GUARD_RECOVERY_TIMEOUT", 30*time.Second)
	if err := ValidatePositiveDuration(recovery); err != nil {
		slog.Warn("invalid RATE_LIMIT_GUARD_RECOVERY_TIMEOUT, using default",
			slog.String("value", recovery.String()),
			slog.String("default", "30s"),
			slog.String("error", err.Error()))
		recovery = 30 * time.Second
	}
	cfg.GuardRecoveryTimeout = recovery

	return cfg
}
