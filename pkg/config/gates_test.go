package config

import (
	"testing"
	"time"

	"rigsy-gateway/pkg/ratelimit"

	"github.com/google/go-cmp/cmp"
)

func TestLoadGatePoliciesDefaults(t *testing.T) {
	p := LoadGatePolicies()

	for _, policy := range []ratelimit.Policy{p.ChatSession, p.ChatDaily, p.ChatMinute, p.TTSDaily, p.TTSMinute} {
		if err := policy.Validate(); err != nil {
			t.Errorf("%s: default policy invalid: %v", policy.Name, err)
		}
	}

	want := &GatePolicies{
		ChatSession: ratelimit.Policy{Name: "chat_session", Limit: 3, Window: 30 * time.Minute},
		ChatDaily:   ratelimit.Policy{Name: "chat_daily", Limit: 20, Window: 24 * time.Hour},
		ChatMinute:  ratelimit.Policy{Name: "chat_minute", Limit: 5, Window: time.Minute},
		TTSDaily:    ratelimit.Policy{Name: "tts_daily", Limit: 30, Window: 24 * time.Hour},
		TTSMinute:   ratelimit.Policy{Name: "tts_minute", Limit: 5, Window: time.Minute},
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("default policies mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadGatePoliciesOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_CHAT_MINUTE_LIMIT", "10")
	t.Setenv("RATE_LIMIT_CHAT_MINUTE_WINDOW", "2m")

	p := LoadGatePolicies()
	if p.ChatMinute.Limit != 10 {
		t.Errorf("chat_minute limit = %d, want 10", p.ChatMinute.Limit)
	}
	if p.ChatMinute.Window != 2*time.Minute {
		t.Errorf("chat_minute window = %v, want 2m", p.ChatMinute.Window)
	}

	// Other policies unaffected.
	if p.ChatDaily.Limit != 20 {
		t.Errorf("chat_daily limit = %d, want 20", p.ChatDaily.Limit)
	}
}

func TestLoadGatePoliciesInvalidFallsBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_TTS_MINUTE_LIMIT", "-1")
	t.Setenv("RATE_LIMIT_TTS_MINUTE_WINDOW", "-5s")

	p := LoadGatePolicies()
	if p.TTSMinute.Limit != 5 {
		t.Errorf("tts_minute limit = %d, want default 5", p.TTSMinute.Limit)
	}
	if p.TTSMinute.Window != time.Minute {
		t.Errorf("tts_minute window = %v, want default 1m", p.TTSMinute.Window)
	}
}

func TestLoadStoreConfigDefaults(t *testing.T) {
	cfg := LoadStoreConfig()

	if cfg.Backend != "memory" {
		t.Errorf("Backend = %q, want memory", cfg.Backend)
	}
	if cfg.SweepInterval != 5*time.Minute {
		t.Errorf("SweepInterval = %v, want 5m", cfg.SweepInterval)
	}
	if cfg.GuardFailureThreshold != 5 {
		t.Errorf("GuardFailureThreshold = %d, want 5", cfg.GuardFailureThreshold)
	}
	if cfg.GuardRecoveryTimeout != 30*time.Second {
		t.Errorf("GuardRecoveryTimeout = %v, want 30s", cfg.GuardRecoveryTimeout)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q, want localhost:6379", cfg.RedisAddr)
	}
	if cfg.RedisKeyPrefix != "ratelimit" {
		t.Errorf("RedisKeyPrefix = %q, want ratelimit", cfg.RedisKeyPrefix)
	}
}

func TestLoadStoreConfigRedis(t *testing.T) {
	t.Setenv("RATE_LIMIT_STORE", "redis")
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("REDIS_DB", "2")

	cfg := LoadStoreConfig()
	if cfg.Backend != "redis" {
		t.Errorf("Backend = %q, want redis", cfg.Backend)
	}
	if cfg.RedisAddr != "redis.internal:6380" {
		t.Errorf("RedisAddr = %q", cfg.RedisAddr)
	}
	if cfg.RedisDB != 2 {
		t.Errorf("RedisDB = %d, want 2", cfg.RedisDB)
	}
}

func TestLoadStoreConfigUnknownBackend(t *testing.T) {
	t.Setenv("RATE_LIMIT_STORE", "memcached")

	cfg := LoadStoreConfig()
	if cfg.Backend != "memory" {
		t.Errorf("Backend = %q, want memory fallback", cfg.Backend)
	}
}
