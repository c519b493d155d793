package waitlist

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotConfigured is returned when the Notion credentials are missing.
var ErrNotConfigured = errors.New("notion integration not configured")

// Notion API error codes this client distinguishes. Anything else is treated
// generically by status class.
const (
	CodeObjectNotFound  = "object_not_found"
	CodeUnauthorized    = "unauthorized"
	CodeRateLimited     = "rate_limited"
	CodeValidationError = "validation_error"
)

// RateLimitError represents a 429 response from the Notion API.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (retry after %v)", e.RetryAfter)
}

// ClientError represents a 4xx response from the Notion API. Code carries
// Notion's machine-readable error code when present.
type ClientError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ClientError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("notion client error [%s]: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("notion client error (%d): %s", e.StatusCode, e.Message)
}

// ServerError represents a 5xx response from the Notion API.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("notion server error (%d): %s", e.StatusCode, e.Message)
}

// is429Error checks if the error is a rate limit error and extracts retry_after.
func is429Error(err error) (*RateLimitError, bool) {
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return rateLimitErr, true
	}
	return nil, false
}

// isRetryableError checks if the error is worth retrying (5xx server errors,
// network errors). Client errors (4xx) are not retryable; 429 is handled
// separately via is429Error.
func isRetryableError(err error) bool {
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return true
	}

	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return false
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return false
	}

	return true
}

// ErrorCode returns the Notion error code carried by err, or "" when err has
// none. Used by the HTTP handler to map Notion failures onto response codes.
func ErrorCode(err error) string {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Code
	}
	if _, ok := is429Error(err); ok {
		return CodeRateLimited
	}
	return ""
}
