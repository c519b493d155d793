// Package speech provides text-to-speech synthesis for Rigsy's voice
// replies. It wraps OpenAI's speech API with reliability patterns and
// structured logging.
package speech

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrEmptyAudio is returned when the provider responds successfully but the
// audio payload is empty.
var ErrEmptyAudio = errors.New("provider returned empty audio")

// Synthesizer converts a short text reply into spoken audio.
// Implementations return encoded MP3 bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Config holds configuration for speech synthesis.
type Config struct {
	// Model is the provider model identifier.
	Model string

	// Voice selects the synthesis voice.
	Voice string

	// Speed is the playback speed multiplier.
	Speed float64

	// Timeout is the maximum duration for a single synthesis API call.
	Timeout time.Duration
}

// Validate validates the configuration and returns an error if invalid.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if c.Voice == "" {
		return fmt.Errorf("voice cannot be empty")
	}
	if c.Speed < 0.25 || c.Speed > 4.0 {
		return fmt.Errorf("speed must be in [0.25, 4.0], got %v", c.Speed)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	return nil
}
