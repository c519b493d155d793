package http

import (
	"net/http"
)

// Handlers bundles the gateway's endpoint handlers for route registration.
type Handlers struct {
	Chat     ChatHandler
	TTS      TTSHandler
	Waitlist WaitlistHandler
	Health   *HealthHandler
	Ready    *ReadyHandler
}

// Register registers all gateway routes with the given mux. The API
// endpoints are POST-only; probes and metrics are GET.
func Register(mux *http.ServeMux, h Handlers) {
	mux.Handle("POST /api/chat", h.Chat)
	mux.Handle("POST /api/tts", h.TTS)
	mux.Handle("POST /api/waitlist", h.Waitlist)

	mux.Handle("GET /health", h.Health)
	mux.Handle("GET /ready", h.Ready)
	mux.Handle("GET /live", &LiveHandler{})
	mux.Handle("GET /metrics", MetricsHandler())
}
