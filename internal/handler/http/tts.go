package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"rigsy-gateway/internal/gate"
	"rigsy-gateway/internal/handler/http/middleware"
	"rigsy-gateway/internal/handler/http/respond"
	"rigsy-gateway/internal/infra/speech"
)

// User-facing messages for the voice endpoint.
const (
	ttsMsgForbidden       = "Forbidden"
	ttsMsgDailyLimited    = "You've hit today's voice limit, driver. Come back tomorrow!"
	ttsMsgMinuteLimited   = "Too many voice requests. Please wait a moment."
	ttsMsgNotConfigured   = "Voice service is not configured."
	ttsMsgSynthesisFailed = "Voice synthesis failed. Please try again."
)

// TTSHandler serves POST /api/tts: converts a short reply into MP3 audio
// after the speech gate clears the request.
type TTSHandler struct {
	Gate *gate.SpeechGate

	// Synthesizer is the speech upstream. Nil means no provider is
	// configured.
	Synthesizer speech.Synthesizer
}

type ttsRequest struct {
	Text string `json:"text"`
	Hash string `json:"hash"`
}

func (h TTSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req ttsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RecordSynthesis("invalid")
		respond.JSON(w, http.StatusBadRequest, map[string]string{"error": "Please provide text to convert."})
		return
	}

	clientKey := middleware.IdentityFromContext(r.Context())
	headers := gate.OriginHeaders{
		Origin:  r.Header.Get("Origin"),
		Referer: r.Header.Get("Referer"),
		Host:    r.Host,
	}

	verdict, err := h.Gate.Evaluate(r.Context(), req.Text, req.Hash, headers, clientKey)
	if err != nil {
		RecordSynthesis("error")
		respond.SafeErrorV2(w, http.StatusInternalServerError,
			respond.NewAppError(http.StatusInternalServerError, ttsMsgSynthesisFailed, err))
		return
	}

	RecordSynthesis(verdict.Outcome.String())

	switch verdict.Outcome {
	case gate.SpeechOriginDenied:
		slog.WarnContext(r.Context(), "tts request from unknown origin",
			slog.String("client", clientKey),
			slog.String("origin", headers.Origin),
			slog.String("host", headers.Host))
		respond.JSON(w, http.StatusForbidden, map[string]string{"error": ttsMsgForbidden})
		return

	case gate.SpeechIntegrityDenied:
		slog.WarnContext(r.Context(), "tts integrity token mismatch",
			slog.String("client", clientKey))
		respond.JSON(w, http.StatusForbidden, map[string]string{"error": ttsMsgForbidden})
		return

	case gate.SpeechInvalid:
		respond.JSON(w, http.StatusBadRequest, map[string]string{"error": verdict.Reason})
		return

	case gate.SpeechDailyLimited:
		respond.JSON(w, http.StatusTooManyRequests, map[string]string{"error": ttsMsgDailyLimited})
		return

	case gate.SpeechMinuteLimited:
		respond.JSON(w, http.StatusTooManyRequests, map[string]string{"error": ttsMsgMinuteLimited})
		return
	}

	if h.Synthesizer == nil {
		slog.ErrorContext(r.Context(), "tts synthesizer not configured")
		respond.JSON(w, http.StatusInternalServerError, map[string]string{"error": ttsMsgNotConfigured})
		return
	}

	start := time.Now()
	audio, err := h.Synthesizer.Synthesize(r.Context(), req.Text)
	RecordUpstreamDuration("speech", time.Since(start))

	if err != nil {
		respond.SafeErrorV2(w, http.StatusInternalServerError,
			respond.NewAppError(http.StatusInternalServerError, ttsMsgSynthesisFailed, err))
		return
	}

	// Voice replies are per-request and never cached.
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(audio); err != nil {
		slog.WarnContext(r.Context(), "failed to write audio response",
			slog.String("error", err.Error()))
	}
}
