package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"rigsy-gateway/internal/resilience/circuitbreaker"
	"rigsy-gateway/internal/resilience/retry"
)

// DefaultOpenAIConfig returns the production configuration for the OpenAI
// synthesizer. The onyx voice is deep and warm, a good fit for a co-pilot
// character, and tts-1 trades a little quality for lower latency.
func DefaultOpenAIConfig() Config {
	return Config{
		Model:   string(openai.TTSModel1),
		Voice:   string(openai.VoiceOnyx),
		Speed:   1.0,
		Timeout: 30 * time.Second,
	}
}

// OpenAI implements the Synthesizer interface using OpenAI's speech API.
// It includes circuit breaker and retry logic for improved reliability.
type OpenAI struct {
	client         *openai.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         Config
}

// NewOpenAI creates a new OpenAI synthesizer with the given API key.
func NewOpenAI(apiKey string) *OpenAI {
	config := DefaultOpenAIConfig()

	slog.Info("Initialized OpenAI synthesizer with configuration",
		slog.String("model", config.Model),
		slog.String("voice", config.Voice))

	return &OpenAI{
		client:         openai.NewClient(apiKey),
		circuitBreaker: circuitbreaker.New(circuitbreaker.SpeechAPIConfig()),
		retryConfig:    retry.SpeechAPIConfig(),
		config:         config,
	}
}

// Synthesize converts text into MP3 audio.
// It uses circuit breaker and retry logic for improved reliability.
func (o *OpenAI) Synthesize(ctx context.Context, text string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	var result []byte

	retryErr := retry.WithBackoff(ctx, o.retryConfig, func() error {
		cbResult, err := o.circuitBreaker.Execute(func() (interface{}, error) {
			return o.doSynthesize(ctx, text)
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("speech api circuit breaker open, request rejected",
					slog.String("service", "speech-api"),
					slog.String("state", o.circuitBreaker.State().String()))
				return fmt.Errorf("speech api unavailable: circuit breaker open")
			}
			return err
		}

		result = cbResult.([]byte)
		return nil
	})

	if retryErr != nil {
		if errors.Is(retryErr, ErrEmptyAudio) {
			return nil, retryErr
		}
		return nil, fmt.Errorf("speech synthesize failed after retries: %w", retryErr)
	}

	return result, nil
}

// doSynthesize performs the actual API call without retry or circuit breaker.
func (o *OpenAI) doSynthesize(ctx context.Context, text string) ([]byte, error) {
	slog.InfoContext(ctx, "Starting synthesis",
		slog.Int("input_length", len(text)))

	start := time.Now()

	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.SpeechModel(o.config.Model),
		Input: text,
		Voice: openai.SpeechVoice(o.config.Voice),
		Speed: o.config.Speed,
	})

	if err != nil {
		slog.ErrorContext(ctx, "Synthesis failed",
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("speech api error: %w", err)
	}
	defer func() { _ = resp.Close() }()

	audio, err := io.ReadAll(resp)
	duration := time.Since(start)

	if err != nil {
		slog.ErrorContext(ctx, "Reading audio stream failed",
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("read audio stream: %w", err)
	}

	if len(audio) == 0 {
		slog.ErrorContext(ctx, "Speech API returned empty audio",
			slog.Duration("duration", duration))
		return nil, ErrEmptyAudio
	}

	slog.InfoContext(ctx, "Synthesis completed",
		slog.Int("audio_bytes", len(audio)),
		slog.Duration("duration", duration))

	return audio, nil
}
