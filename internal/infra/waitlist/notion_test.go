package waitlist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, serverURL string) *NotionClient {
	t.Helper()
	client := NewNotionClient(NotionConfig{
		APIKey:     "secret_test-key",
		DatabaseID: "db-123",
		Timeout:    2 * time.Second,
	})
	client.pagesURL = serverURL
	client.now = func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	return client
}

func TestNotionClientAddSignup(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret_test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Notion-Version"); got != "2022-06-28" {
			t.Errorf("Notion-Version = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"page-1"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	err := client.AddSignup(context.Background(), Signup{
		Email: "driver@example.com",
		Role:  "fleet-manager",
	})
	if err != nil {
		t.Fatalf("AddSignup() error = %v", err)
	}

	parent, _ := captured["parent"].(map[string]any)
	if parent["database_id"] != "db-123" {
		t.Errorf("parent.database_id = %v, want db-123", parent["database_id"])
	}

	props, _ := captured["properties"].(map[string]any)
	for _, key := range []string{"Name", "Email", "Role", "Source", "Status", "Signup Date", "Created At"} {
		if _, ok := props[key]; !ok {
			t.Errorf("property %q missing from payload", key)
		}
	}

	email, _ := props["Email"].(map[string]any)
	if email["email"] != "driver@example.com" {
		t.Errorf("Email property = %v", email["email"])
	}

	role, _ := props["Role"].(map[string]any)
	roleSelect, _ := role["select"].(map[string]any)
	if roleSelect["name"] != "Fleet Manager" {
		t.Errorf("Role select = %v, want Fleet Manager", roleSelect["name"])
	}

	status, _ := props["Status"].(map[string]any)
	statusSelect, _ := status["select"].(map[string]any)
	if statusSelect["name"] != "New" {
		t.Errorf("Status select = %v, want New", statusSelect["name"])
	}

	signupDate, _ := props["Signup Date"].(map[string]any)
	dateValue, _ := signupDate["date"].(map[string]any)
	if dateValue["start"] != "2025-06-01T12:00:00Z" {
		t.Errorf("Signup Date = %v", dateValue["start"])
	}
}

func TestNotionClientNotConfigured(t *testing.T) {
	client := NewNotionClient(NotionConfig{})
	err := client.AddSignup(context.Background(), Signup{
		Email: "driver@example.com",
		Role:  "other",
	})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("AddSignup() error = %v, want ErrNotConfigured", err)
	}
}

func TestNotionClientInvalidSignup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be reached for invalid signups")
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	if err := client.AddSignup(context.Background(), Signup{Email: "not-an-email", Role: "other"}); err == nil {
		t.Error("AddSignup() with invalid email should fail")
	}
}

func TestNotionClientRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"code":"internal_server_error","message":"upstream hiccup"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"page-1"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	err := client.AddSignup(context.Background(), Signup{
		Email: "driver@example.com",
		Role:  "owner-operator",
	})
	if err != nil {
		t.Fatalf("AddSignup() error = %v, want retry to succeed", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server calls = %d, want 2", got)
	}
}

func TestNotionClientDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"validation_error","message":"Role is not a valid select option"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	err := client.AddSignup(context.Background(), Signup{
		Email: "driver@example.com",
		Role:  "other",
	})

	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("AddSignup() error = %T, want *ClientError", err)
	}
	if clientErr.Code != "validation_error" {
		t.Errorf("Code = %q, want validation_error", clientErr.Code)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server calls = %d, want 1 (no retry)", got)
	}
}

func TestNotionClientRateLimitWithoutRetryAfter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"code":"rate_limited","message":"slow down"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	err := client.AddSignup(context.Background(), Signup{
		Email: "driver@example.com",
		Role:  "other",
	})

	var rateLimitErr *RateLimitError
	if !errors.As(err, &rateLimitErr) {
		t.Fatalf("AddSignup() error = %T, want *RateLimitError", err)
	}
	// 429 なので待たずに即座に呼び出し元へ返す
	if got := calls.Load(); got != 1 {
		t.Errorf("server calls = %d, want 1", got)
	}
}

func TestNotionClientRateLimitHonorsShortRetryAfter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0.1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"code":"rate_limited","message":"slow down"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"page-1"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	err := client.AddSignup(context.Background(), Signup{
		Email: "driver@example.com",
		Role:  "other",
	})
	if err != nil {
		t.Fatalf("AddSignup() error = %v, want retry after short delay", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server calls = %d, want 2", got)
	}
}

func TestErrorCodeMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"client error code", &ClientError{StatusCode: 400, Code: "validation_error"}, "validation_error"},
		{"object not found", &ClientError{StatusCode: 404, Code: CodeObjectNotFound}, "object_not_found"},
		{"rate limit", &RateLimitError{Message: "slow down"}, CodeRateLimited},
		{"plain error", errors.New("boom"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.want {
				t.Errorf("ErrorCode() = %q, want %q", got, tt.want)
			}
		})
	}
}
