package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"rigsy-gateway/internal/handler/http/respond"
	"rigsy-gateway/internal/infra/waitlist"
)

// User-facing messages for the waitlist endpoint.
const (
	waitlistMsgUnavailable   = "Service temporarily unavailable"
	waitlistMsgInvalidBody   = "Invalid request body"
	waitlistMsgMissingFields = "Email and role are required"
	waitlistMsgInvalidEmail  = "Please enter a valid email address"
	waitlistMsgConfigError   = "Service configuration error. Please try again later."
	waitlistMsgRateLimited   = "Too many requests. Please try again in a moment."
	waitlistMsgValidation    = "Invalid data submitted. Please check your information."
	waitlistMsgFailed        = "Failed to join waitlist. Please try again."
)

// SignupStore persists one waitlist signup.
type SignupStore interface {
	AddSignup(ctx context.Context, signup waitlist.Signup) error
}

// WaitlistHandler serves POST /api/waitlist: validates a landing-page signup
// and writes it through to the CRM store.
type WaitlistHandler struct {
	Store SignupStore

	// Configured reports whether the store credentials are present.
	// Checked before the body is even parsed so a misconfigured deploy
	// answers 503 consistently.
	Configured bool
}

type waitlistRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type waitlistError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (h WaitlistHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.Configured || h.Store == nil {
		RecordWaitlistSignup("not-configured")
		slog.ErrorContext(r.Context(), "waitlist store not configured")
		respond.JSON(w, http.StatusServiceUnavailable, waitlistError{
			Error: waitlistMsgUnavailable,
			Code:  "config_error",
		})
		return
	}

	var req waitlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RecordWaitlistSignup("invalid")
		respond.JSON(w, http.StatusBadRequest, waitlistError{Error: waitlistMsgInvalidBody})
		return
	}

	signup := waitlist.Signup{Email: req.Email, Role: req.Role}
	if err := signup.Validate(); err != nil {
		RecordWaitlistSignup("invalid")
		switch {
		case errors.Is(err, waitlist.ErrMissingFields):
			respond.JSON(w, http.StatusBadRequest, waitlistError{Error: waitlistMsgMissingFields})
		case errors.Is(err, waitlist.ErrInvalidEmail):
			respond.JSON(w, http.StatusBadRequest, waitlistError{Error: waitlistMsgInvalidEmail})
		default:
			respond.JSON(w, http.StatusBadRequest, waitlistError{Error: waitlistMsgInvalidBody})
		}
		return
	}

	start := time.Now()
	err := h.Store.AddSignup(r.Context(), signup)
	RecordUpstreamDuration("waitlist", time.Since(start))

	if err == nil {
		RecordWaitlistSignup("ok")
		slog.InfoContext(r.Context(), "waitlist signup accepted",
			slog.String("role", waitlist.RoleDisplayName(req.Role)))
		respond.JSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}

	h.respondError(w, r, err)
}

// respondError maps store failures onto the endpoint's error contract. The
// 503 codes distinguish a missing database from bad credentials so the
// frontend can report something actionable to us, not the visitor.
func (h WaitlistHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, waitlist.ErrNotConfigured) {
		RecordWaitlistSignup("not-configured")
		slog.ErrorContext(r.Context(), "waitlist store not configured")
		respond.JSON(w, http.StatusServiceUnavailable, waitlistError{
			Error: waitlistMsgUnavailable,
			Code:  "config_error",
		})
		return
	}

	code := waitlist.ErrorCode(err)
	slog.ErrorContext(r.Context(), "waitlist signup failed",
		slog.String("code", code),
		slog.String("error", respond.SanitizeError(err)))

	switch code {
	case waitlist.CodeObjectNotFound:
		RecordWaitlistSignup("config-error")
		respond.JSON(w, http.StatusServiceUnavailable, waitlistError{
			Error: waitlistMsgConfigError,
			Code:  "database_not_found",
		})
	case waitlist.CodeUnauthorized:
		RecordWaitlistSignup("config-error")
		respond.JSON(w, http.StatusServiceUnavailable, waitlistError{
			Error: waitlistMsgConfigError,
			Code:  "unauthorized",
		})
	case waitlist.CodeRateLimited:
		RecordWaitlistSignup("rate-limited")
		respond.JSON(w, http.StatusTooManyRequests, waitlistError{
			Error: waitlistMsgRateLimited,
			Code:  "rate_limited",
		})
	case waitlist.CodeValidationError:
		RecordWaitlistSignup("validation-error")
		respond.JSON(w, http.StatusBadRequest, waitlistError{
			Error: waitlistMsgValidation,
			Code:  "validation_error",
		})
	default:
		RecordWaitlistSignup("error")
		respond.JSON(w, http.StatusInternalServerError, waitlistError{Error: waitlistMsgFailed})
	}
}
