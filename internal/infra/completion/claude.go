package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"

	"rigsy-gateway/internal/resilience/circuitbreaker"
	"rigsy-gateway/internal/resilience/retry"
	"rigsy-gateway/internal/utils/text"
)

// DefaultClaudeConfig returns the production configuration for the Claude
// completer. Token and temperature settings mirror the OpenAI provider so
// switching providers does not change the feel of the assistant.
func DefaultClaudeConfig() Config {
	return Config{
		Model:       string(anthropic.ModelClaudeHaiku4_5),
		MaxTokens:   150,
		Temperature: 0.7,
		Timeout:     30 * time.Second,
	}
}

// Claude implements the Completer interface using Anthropic's Claude API.
// It includes circuit breaker and retry logic for improved reliability.
type Claude struct {
	client          anthropic.Client
	circuitBreaker  *circuitbreaker.CircuitBreaker
	retryConfig     retry.Config
	config          Config
	metricsRecorder CompletionMetricsRecorder
}

// NewClaude creates a new Claude completer with the given API key.
// It automatically configures circuit breaker, retry logic, and metrics
// recording.
func NewClaude(apiKey string) *Claude {
	config := DefaultClaudeConfig()

	slog.Info("Initialized Claude completer with configuration",
		slog.String("model", config.Model),
		slog.Int("max_tokens", config.MaxTokens))

	return &Claude{
		client:          anthropic.NewClient(option.WithAPIKey(apiKey)),
		circuitBreaker:  circuitbreaker.New(circuitbreaker.ClaudeAPIConfig()),
		retryConfig:     retry.AIAPIConfig(),
		config:          config,
		metricsRecorder: NewPrometheusCompletionMetrics(),
	}
}

// Complete generates an assistant reply for the given user message.
// It uses circuit breaker and retry logic for improved reliability.
func (c *Claude) Complete(ctx context.Context, message string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var result string

	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		cbResult, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.doComplete(ctx, message)
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("claude api circuit breaker open, request rejected",
					slog.String("service", "claude-api"),
					slog.String("state", c.circuitBreaker.State().String()))
				return fmt.Errorf("claude api unavailable: circuit breaker open")
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
		return "", fmt.Errorf("claude complete failed after retries: %w", retryErr)
	}

	return result, nil
}

// doComplete performs the actual API call without retry or circuit breaker.
func (c *Claude) doComplete(ctx context.Context, message string) (string, error) {
	slog.InfoContext(ctx, "Starting completion",
		slog.String("provider", "claude"),
		slog.Int("input_length", text.CountRunes(message)))

	start := time.Now()

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.config.Model),
		MaxTokens:   int64(c.config.MaxTokens),
		Temperature: anthropic.Float(float64(c.config.Temperature)),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(message),
			),
		},
	})

	duration := time.Since(start)
	c.metricsRecorder.RecordDuration("claude", duration)

	if err != nil {
		c.metricsRecorder.RecordOutcome("claude", "error")
		slog.ErrorContext(ctx, "Completion failed",
			slog.String("provider", "claude"),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("claude api error: %w", err)
	}

	if len(resp.Content) == 0 {
		c.metricsRecorder.RecordOutcome("claude", "empty")
		slog.ErrorContext(ctx, "Claude API returned empty completion",
			slog.Duration("duration", duration))
		return "", ErrEmptyCompletion
	}

	textBlock, ok := resp.Content[0].AsAny().(anthropic.TextBlock)
	if !ok || textBlock.Text == "" {
		c.metricsRecorder.RecordOutcome("claude", "empty")
		slog.ErrorContext(ctx, "Claude API returned unexpected response type",
			slog.Duration("duration", duration))
		return "", ErrEmptyCompletion
	}

	reply := textBlock.Text
	replyLength := text.CountRunes(reply)

	c.metricsRecorder.RecordOutcome("claude", "ok")
	c.metricsRecorder.RecordLength("claude", replyLength)

	slog.InfoContext(ctx, "Completion completed",
		slog.String("provider", "claude"),
		slog.Int("reply_length", replyLength),
		slog.Duration("duration", duration))

	return reply, nil
}
