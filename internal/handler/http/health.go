// Package http provides the HTTP handlers and middleware for the Rigsy
// gateway: the chat, speech, and waitlist endpoints, health check endpoints,
// metrics collection, and request plumbing.
package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"rigsy-gateway/pkg/ratelimit"
)

// HealthResponse represents the JSON response for health check endpoints.
type HealthResponse struct {
	Status    string                 `json:"status"`    // "healthy" or "unhealthy"
	Timestamp string                 `json:"timestamp"` // ISO 8601 format
	Checks    map[string]CheckStatus `json:"checks"`    // Status of each check item
	Version   string                 `json:"version"`   // Application version
}

// CheckStatus represents the status of a single health check.
type CheckStatus struct {
	Status  string                 `json:"status"`            // "healthy", "degraded", or "unhealthy"
	Message string                 `json:"message,omitempty"` // Optional status message
	Details map[string]interface{} `json:"details,omitempty"` // Optional additional details
}

// HealthHandler handles health check endpoint requests.
// It reports rate limit store health, store guard state, and whether each
// upstream is configured.
type HealthHandler struct {
	Version string

	// Rate limiter components
	Store        ratelimit.CounterStore
	Guard        *ratelimit.StoreGuard
	StoreBackend string // "memory" or "redis"

	// Upstream configuration presence (never the credentials themselves)
	CompletionConfigured bool
	SpeechConfigured     bool
	WaitlistConfigured   bool
}

// ServeHTTP performs health checks and returns the application health status.
// Returns 200 OK if healthy, or 503 Service Unavailable if any check fails.
//
// A tripped store guard is reported but does not make the service unhealthy:
// the limiter fails open and the endpoints keep serving.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]CheckStatus)
	allHealthy := true

	storeCheck := h.checkStore(ctx)
	checks["rate_limit_store"] = storeCheck
	if storeCheck.Status == "unhealthy" {
		allHealthy = false
	}

	checks["upstreams"] = h.checkUpstreams()
	if !h.CompletionConfigured {
		// Without a completion upstream the main endpoint cannot serve.
		allHealthy = false
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Version:   h.Version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("health: failed to encode response: %v", err)
	}
}

// checkStore reports the counter store's reachability, active key count, and
// the store guard state.
func (h *HealthHandler) checkStore(ctx context.Context) CheckStatus {
	details := map[string]interface{}{
		"backend": h.StoreBackend,
	}

	if h.Guard != nil {
		details["guard_state"] = h.Guard.State().String()
	}

	if h.Store == nil {
		return CheckStatus{
			Status:  "unhealthy",
			Message: "not configured",
			Details: details,
		}
	}

	keys, err := h.Store.KeyCount(ctx)
	if err != nil {
		// The limiter fails open on store errors, so a broken store is
		// degraded service rather than an outage.
		return CheckStatus{
			Status:  "degraded",
			Message: err.Error(),
			Details: details,
		}
	}
	details["active_keys"] = keys

	return CheckStatus{
		Status:  "healthy",
		Details: details,
	}
}

// checkUpstreams reports which upstream integrations have credentials
// configured. Presence only; the keys themselves never appear here.
func (h *HealthHandler) checkUpstreams() CheckStatus {
	details := map[string]interface{}{
		"completion": h.CompletionConfigured,
		"speech":     h.SpeechConfigured,
		"waitlist":   h.WaitlistConfigured,
	}

	status := "healthy"
	message := ""
	if !h.CompletionConfigured {
		status = "unhealthy"
		message = "completion upstream not configured"
	} else if !h.SpeechConfigured || !h.WaitlistConfigured {
		status = "degraded"
		message = "one or more optional upstreams not configured"
	}

	return CheckStatus{
		Status:  status,
		Message: message,
		Details: details,
	}
}

// ReadyHandler handles Kubernetes readiness probe requests.
// It checks that the rate limit store answers before accepting traffic.
type ReadyHandler struct {
	Store ratelimit.CounterStore
}

// ServeHTTP performs readiness checks and returns 200 OK if ready,
// or 503 Service Unavailable if the store is not reachable.
func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.Store == nil {
		http.Error(w, "rate limit store not configured", http.StatusServiceUnavailable)
		return
	}

	if _, err := h.Store.KeyCount(ctx); err != nil {
		http.Error(w, "rate limit store not ready: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ready")); err != nil {
		log.Printf("ready: failed to write response: %v", err)
	}
}

// LiveHandler handles Kubernetes liveness probe requests.
// It performs a lightweight check to verify the application is responsive.
type LiveHandler struct{}

// ServeHTTP performs a simple liveness check and always returns 200 OK
// if the application is running and able to respond.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("alive")); err != nil {
		log.Printf("alive: failed to write response: %v", err)
	}
}
