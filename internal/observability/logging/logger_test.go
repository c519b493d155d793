package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"rigsy-gateway/internal/handler/http/requestid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected slog.Level
	}{
		{
			name:     "debug",
			level:    "debug",
			expected: slog.LevelDebug,
		},
		{
			name:     "info",
			level:    "info",
			expected: slog.LevelInfo,
		},
		{
			name:     "warn",
			level:    "warn",
			expected: slog.LevelWarn,
		},
		{
			name:     "error",
			level:    "error",
			expected: slog.LevelError,
		},
		{
			name:     "empty defaults to info",
			level:    "",
			expected: slog.LevelInfo,
		},
		{
			name:     "unknown defaults to info",
			level:    "verbose",
			expected: slog.LevelInfo,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.level))
		})
	}
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "warn", "error"} {
		assert.NotNil(t, NewLogger(level), "level %q", level)
	}
	assert.NotNil(t, NewTextLogger("debug"))
}

func TestWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	baseLogger := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := requestid.WithRequestID(context.Background(), "req-abc-123")
	WithRequestID(ctx, baseLogger).Info("test message")

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	assert.Equal(t, "req-abc-123", logEntry["request_id"])
	assert.Equal(t, "test message", logEntry["msg"])
}

func TestWithRequestID_EmptyRequestID(t *testing.T) {
	var buf bytes.Buffer
	baseLogger := slog.New(slog.NewJSONHandler(&buf, nil))

	// Context without a request ID: logger comes back unchanged.
	WithRequestID(context.Background(), baseLogger).Info("test message")

	assert.Contains(t, buf.String(), "test message")
	assert.NotContains(t, buf.String(), "request_id")
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	baseLogger := slog.New(slog.NewJSONHandler(&buf, nil))

	logger := WithFields(baseLogger, map[string]interface{}{
		"client":  "203.0.113.7",
		"outcome": "allowed",
		"count":   3,
	})
	logger.Info("test message")

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	assert.Equal(t, "203.0.113.7", logEntry["client"])
	assert.Equal(t, "allowed", logEntry["outcome"])
	assert.Equal(t, float64(3), logEntry["count"])
}

func TestFromContext(t *testing.T) {
	t.Run("with logger in context", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		ctx := WithLogger(context.Background(), logger)

		FromContext(ctx).Info("from context")
		assert.Contains(t, buf.String(), "from context")
	})

	t.Run("without logger in context", func(t *testing.T) {
		assert.Equal(t, slog.Default(), FromContext(context.Background()))
	})

	t.Run("with invalid value in context", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), loggerContextKey, "not a logger")
		assert.Equal(t, slog.Default(), FromContext(ctx))
	})
}
