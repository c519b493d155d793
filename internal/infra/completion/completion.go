// Package completion provides AI chat completion implementations for the
// Rigsy assistant. It includes adapters for OpenAI and Claude (Anthropic)
// APIs with reliability patterns, a shared trucking-domain system prompt,
// and observability through structured logging and Prometheus metrics.
package completion

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrEmptyCompletion is returned when the provider responds successfully but
// the completion contains no text.
var ErrEmptyCompletion = errors.New("provider returned empty completion")

// Completer generates a single assistant reply for one user message.
// The system prompt is fixed by the implementation; callers only supply
// the user's question.
type Completer interface {
	Complete(ctx context.Context, message string) (string, error)
}

// Config holds shared configuration for completion providers.
type Config struct {
	// Model is the provider model identifier.
	Model string

	// MaxTokens caps the response length. Replies are spoken aloud by the
	// voice layer, so this stays small.
	MaxTokens int

	// Temperature controls response randomness.
	Temperature float32

	// Timeout is the maximum duration for a single completion API call.
	Timeout time.Duration
}

// Validate validates the configuration and returns an error if invalid.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0, 2], got %v", c.Temperature)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	return nil
}
