package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"rigsy-gateway/internal/resilience/circuitbreaker"
	"rigsy-gateway/internal/resilience/retry"
	"rigsy-gateway/internal/utils/text"
)

// DefaultOpenAIConfig returns the production configuration for the OpenAI
// completer. Replies feed the voice layer, so max tokens stays small.
func DefaultOpenAIConfig() Config {
	return Config{
		Model:       openai.GPT4oMini,
		MaxTokens:   150,
		Temperature: 0.7,
		Timeout:     30 * time.Second,
	}
}

// OpenAI implements the Completer interface using OpenAI's chat API.
// It includes circuit breaker and retry logic for improved reliability.
type OpenAI struct {
	client          *openai.Client
	circuitBreaker  *circuitbreaker.CircuitBreaker
	retryConfig     retry.Config
	config          Config
	metricsRecorder CompletionMetricsRecorder
}

// NewOpenAI creates a new OpenAI completer with the given API key.
// It automatically configures circuit breaker, retry logic, and metrics
// recording.
func NewOpenAI(apiKey string) *OpenAI {
	config := DefaultOpenAIConfig()

	slog.Info("Initialized OpenAI completer with configuration",
		slog.String("model", config.Model),
		slog.Int("max_tokens", config.MaxTokens))

	return &OpenAI{
		client:          openai.NewClient(apiKey),
		circuitBreaker:  circuitbreaker.New(circuitbreaker.OpenAIAPIConfig()),
		retryConfig:     retry.AIAPIConfig(),
		config:          config,
		metricsRecorder: NewPrometheusCompletionMetrics(),
	}
}

// Complete generates an assistant reply for the given user message.
// It uses circuit breaker and retry logic for improved reliability.
func (o *OpenAI) Complete(ctx context.Context, message string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	var result string

	retryErr := retry.WithBackoff(ctx, o.retryConfig, func() error {
		cbResult, err := o.circuitBreaker.Execute(func() (interface{}, error) {
			return o.doComplete(ctx, message)
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("openai api circuit breaker open, request rejected",
					slog.String("service", "openai-api"),
					slog.String("state", o.circuitBreaker.State().String()))
				return fmt.Errorf("openai api unavailable: circuit breaker open")
			}
			return err
		}

		result = cbResult.(string)
		return nil
	})

	if retryErr != nil {
		if errors.Is(retryErr, ErrEmptyCompletion) {
			return "", retryErr
		}
		return "", fmt.Errorf("openai complete failed after retries: %w", retryErr)
	}

	return result, nil
}

// doComplete performs the actual API call without retry or circuit breaker.
func (o *OpenAI) doComplete(ctx context.Context, message string) (string, error) {
	slog.InfoContext(ctx, "Starting completion",
		slog.String("provider", "openai"),
		slog.Int("input_length", text.CountRunes(message)))

	start := time.Now()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.config.Model,
		MaxTokens:   o.config.MaxTokens,
		Temperature: o.config.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: message,
			},
		},
	})

	duration := time.Since(start)
	o.metricsRecorder.RecordDuration("openai", duration)

	if err != nil {
		o.metricsRecorder.RecordOutcome("openai", "error")
		slog.ErrorContext(ctx, "Completion failed",
			slog.String("provider", "openai"),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("openai api error: %w", err)
	}

	// Safety check to prevent panic on array access
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		o.metricsRecorder.RecordOutcome("openai", "empty")
		slog.ErrorContext(ctx, "OpenAI API returned empty completion",
			slog.Duration("duration", duration))
		return "", ErrEmptyCompletion
	}

	reply := resp.Choices[0].Message.Content
	replyLength := text.CountRunes(reply)

	o.metricsRecorder.RecordOutcome("openai", "ok")
	o.metricsRecorder.RecordLength("openai", replyLength)

	slog.InfoContext(ctx, "Completion completed",
		slog.String("provider", "openai"),
		slog.Int("reply_length", replyLength),
		slog.Duration("duration", duration))

	return reply, nil
}
