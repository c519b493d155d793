package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"rigsy-gateway/internal/gate"
	"rigsy-gateway/internal/handler/http/middleware"
	"rigsy-gateway/internal/handler/http/respond"
	"rigsy-gateway/internal/infra/completion"
)

// User-facing messages for the chat endpoint. The rate-limit and deflection
// copy is part of the product voice, not error plumbing, so it lives here as
// constants rather than being derived from errors.
const (
	chatMsgDailyLimited     = "You've been chatting a lot today! Come back tomorrow, or join the waitlist to get full access when we launch."
	chatMsgMinuteLimited    = "Whoa, slow down driver! Give me a second to catch up. Try again in a moment."
	chatMsgSessionExhausted = "Hey driver! I'm still learning and we're building something awesome. Join the waitlist to be first in line when Rigsy launches - I'd love to keep chatting with you!"
	chatMsgDeflection       = "Hey driver! I'm here to help with trucking stuff - routes, ELD regulations, rest stops, or quick cab workouts. What can I help you with?"
	chatMsgNotConfigured    = "Voice service is not configured. Please try again later."
	chatMsgEmptyCompletion  = "Something went wrong. Try asking again!"
	chatMsgGenericFailure   = "Something went wrong. Please try again."
)

// ChatHandler serves POST /api/chat: one conversational turn through the
// gate and on to the completion upstream.
type ChatHandler struct {
	Gate *gate.ChatGate

	// Speech stamps an integrity token on successful replies so the voice
	// player can call the TTS endpoint without re-deriving it client-side.
	// Optional; when nil, responses carry no token.
	Speech *gate.SpeechGate

	// Completer is the completion upstream. Nil means no provider is
	// configured, which surfaces as a 500 on every allowed turn.
	Completer completion.Completer
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

type chatReply struct {
	Response           string `json:"response"`
	SessionCount       int    `json:"sessionCount"`
	IsLastFreeQuestion bool   `json:"isLastFreeQuestion"`

	// TTSHash lets the voice player call the synthesis endpoint for this
	// reply without deriving the integrity token client-side.
	TTSHash string `json:"ttsHash,omitempty"`
}

type chatSignupPrompt struct {
	Response       string `json:"response"`
	RequiresSignup bool   `json:"requiresSignup"`
	SessionCount   int    `json:"sessionCount"`
}

type chatDeflection struct {
	Response     string `json:"response"`
	SessionCount int    `json:"sessionCount"`
}

func (h ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RecordChatQuestion("invalid")
		respond.JSON(w, http.StatusBadRequest, map[string]string{"error": "Please provide a valid message."})
		return
	}

	clientKey := middleware.IdentityFromContext(r.Context())

	verdict, err := h.Gate.Evaluate(r.Context(), req.Message, req.SessionID, clientKey)
	if err != nil {
		RecordChatQuestion("error")
		respond.SafeErrorV2(w, http.StatusInternalServerError,
			respond.NewAppError(http.StatusInternalServerError, chatMsgGenericFailure, err))
		return
	}

	RecordChatQuestion(verdict.Outcome.String())

	switch verdict.Outcome {
	case gate.ChatInvalid:
		respond.JSON(w, http.StatusBadRequest, map[string]string{"error": verdict.Reason})
		return

	case gate.ChatSessionExhausted:
		RecordSignupPrompt()
		slog.InfoContext(r.Context(), "chat session exhausted, prompting signup",
			slog.String("client", clientKey),
			slog.Int("session_count", verdict.SessionCount))
		respond.JSON(w, http.StatusOK, chatSignupPrompt{
			Response:       chatMsgSessionExhausted,
			RequiresSignup: true,
			SessionCount:   verdict.SessionCount,
		})
		return

	case gate.ChatDailyLimited:
		respond.JSON(w, http.StatusTooManyRequests, map[string]string{"error": chatMsgDailyLimited})
		return

	case gate.ChatMinuteLimited:
		respond.JSON(w, http.StatusTooManyRequests, map[string]string{"error": chatMsgMinuteLimited})
		return

	case gate.ChatDeflected:
		RecordDeflection(verdict.PatternLabel)
		slog.WarnContext(r.Context(), "suspicious message deflected",
			slog.String("client", clientKey),
			slog.String("pattern", verdict.PatternLabel))
		respond.JSON(w, http.StatusOK, chatDeflection{
			Response:     chatMsgDeflection,
			SessionCount: verdict.SessionCount,
		})
		return
	}

	if h.Completer == nil {
		slog.ErrorContext(r.Context(), "chat completer not configured")
		respond.JSON(w, http.StatusInternalServerError, map[string]string{"error": chatMsgNotConfigured})
		return
	}

	start := time.Now()
	reply, err := h.Completer.Complete(r.Context(), req.Message)
	RecordUpstreamDuration("completion", time.Since(start))

	if err != nil {
		if errors.Is(err, completion.ErrEmptyCompletion) {
			respond.JSON(w, http.StatusInternalServerError, map[string]string{"error": chatMsgEmptyCompletion})
			return
		}
		respond.SafeErrorV2(w, http.StatusInternalServerError,
			respond.NewAppError(http.StatusInternalServerError, chatMsgGenericFailure, err))
		return
	}

	response := chatReply{
		Response:           reply,
		SessionCount:       verdict.SessionCount,
		IsLastFreeQuestion: verdict.LastFreeQuestion,
	}
	if h.Speech != nil {
		response.TTSHash = h.Speech.Token(reply)
	}
	respond.JSON(w, http.StatusOK, response)
}
