package ratelimit

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

// findMetric gathers the registry and returns the named metric family.
func findMetric(t *testing.T, m *PrometheusMetrics, name string) *dto.MetricFamily {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func TestPrometheusMetricsChecks(t *testing.T) {
	m := NewPrometheusMetrics()

	m.RecordAllowed("chat_minute")
	m.RecordAllowed("chat_minute")
	m.RecordDenied("chat_minute")
	m.RecordDenied("tts_daily")

	family := findMetric(t, m, "ratelimit_checks_total")
	if family == nil {
		t.Fatal("ratelimit_checks_total not registered")
	}

	counts := map[string]float64{}
	for _, metric := range family.GetMetric() {
		var policy, verdict string
		for _, label := range metric.GetLabel() {
			switch label.GetName() {
			case "policy":
				policy = label.GetValue()
			case "verdict":
				verdict = label.GetValue()
			}
		}
		counts[policy+"/"+verdict] = metric.GetCounter().GetValue()
	}

	if counts["chat_minute/allowed"] != 2 {
		t.Errorf("chat_minute allowed = %v, want 2", counts["chat_minute/allowed"])
	}
	if counts["chat_minute/denied"] != 1 {
		t.Errorf("chat_minute denied = %v, want 1", counts["chat_minute/denied"])
	}
	if counts["tts_daily/denied"] != 1 {
		t.Errorf("tts_daily denied = %v, want 1", counts["tts_daily/denied"])
	}
}

func TestPrometheusMetricsGauges(t *testing.T) {
	m := NewPrometheusMetrics()

	m.SetActiveKeys("counter", 42)
	m.RecordCircuitState("counter", "open")
	m.RecordSweep("counter", 7)
	m.RecordCheckDuration("chat_minute", 2*time.Millisecond)

	keys := findMetric(t, m, "ratelimit_active_keys")
	if keys == nil || keys.GetMetric()[0].GetGauge().GetValue() != 42 {
		t.Error("active keys gauge not set to 42")
	}

	state := findMetric(t, m, "ratelimit_store_guard_state")
	if state == nil || state.GetMetric()[0].GetGauge().GetValue() != 1 {
		t.Error("circuit state gauge not set to 1 for open")
	}

	swept := findMetric(t, m, "ratelimit_swept_counters_total")
	if swept == nil || swept.GetMetric()[0].GetCounter().GetValue() != 7 {
		t.Error("swept counter not incremented by 7")
	}

	duration := findMetric(t, m, "ratelimit_check_duration_seconds")
	if duration == nil || duration.GetMetric()[0].GetHistogram().GetSampleCount() != 1 {
		t.Error("check duration histogram missing observation")
	}
}

func TestNoOpMetricsIsSafe(t *testing.T) {
	var m Metrics = &NoOpMetrics{}
	m.RecordAllowed("p")
	m.RecordDenied("p")
	m.RecordCheckDuration("p", time.Millisecond)
	m.SetActiveKeys("s", 1)
	m.RecordSweep("s", 1)
	m.RecordCircuitState("s", "closed")
}
