package requestid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestFromContext(t *testing.T) {
	t.Run("with request ID", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "id-123")
		assert.Equal(t, "id-123", FromContext(ctx))
	})

	t.Run("without request ID", func(t *testing.T) {
		assert.Equal(t, "", FromContext(context.Background()))
	})

	t.Run("with wrong value type", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), RequestIDKey, 42)
		assert.Equal(t, "", FromContext(ctx))
	})
}

func TestMiddlewareReusesValidInboundID(t *testing.T) {
	inbound := "550e8400-e29b-41d4-a716-446655440000"

	var seen string
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	req.Header.Set(RequestIDHeader, inbound)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, inbound, seen)
	assert.Equal(t, inbound, rec.Header().Get(RequestIDHeader))
}

func TestMiddlewareReplacesForgedInboundID(t *testing.T) {
	tests := []struct {
		name    string
		inbound string
	}{
		{name: "log injection attempt", inbound: "abc\nlevel=ERROR fake line"},
		{name: "arbitrary string", inbound: "not-a-uuid"},
		{name: "oversized", inbound: "550e8400-e29b-41d4-a716-446655440000-extra"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = FromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
			req.Header.Set(RequestIDHeader, tt.inbound)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.NotEqual(t, tt.inbound, seen, "forged ID must not be reused")
			_, err := uuid.Parse(seen)
			assert.NoError(t, err, "replacement should be a fresh UUID")
			assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
		})
	}
}

func TestMiddlewareGeneratesNewRequestID(t *testing.T) {
	var seen string
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	_, err := uuid.Parse(seen)
	assert.NoError(t, err, "generated ID should be a UUID")
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestMiddlewareUniqueAcrossRequests(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	ids := make(map[string]bool)
	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		ids[rec.Header().Get(RequestIDHeader)] = true
	}

	assert.Len(t, ids, 10, "each request should get its own ID")
}
