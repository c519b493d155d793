package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

// newTestOpenAI points the completer at a local test server.
func newTestOpenAI(serverURL string) *OpenAI {
	completer := NewOpenAI("test-key")
	clientConfig := openai.DefaultConfig("test-key")
	clientConfig.BaseURL = serverURL + "/v1"
	completer.client = openai.NewClientWithConfig(clientConfig)
	return completer
}

func chatCompletionResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		ID:    "chatcmpl-test",
		Model: openai.GPT4oMini,
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: "assistant", Content: content}},
		},
	}
}

func TestOpenAIComplete(t *testing.T) {
	var received openai.ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletionResponse("You've got 11 hours of drive time, driver!"))
	}))
	defer server.Close()

	completer := newTestOpenAI(server.URL)
	reply, err := completer.Complete(context.Background(), "How much drive time do I have?")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if !strings.Contains(reply, "11 hours") {
		t.Errorf("reply = %q", reply)
	}

	if received.Model != openai.GPT4oMini {
		t.Errorf("model = %q, want %q", received.Model, openai.GPT4oMini)
	}
	if received.MaxTokens != 150 {
		t.Errorf("max_tokens = %d, want 150", received.MaxTokens)
	}
	if len(received.Messages) != 2 {
		t.Fatalf("messages = %d, want system + user", len(received.Messages))
	}
	if received.Messages[0].Role != "system" || !strings.Contains(received.Messages[0].Content, "You are Rigsy") {
		t.Error("first message must carry the Rigsy system prompt")
	}
	if received.Messages[1].Role != "user" || received.Messages[1].Content != "How much drive time do I have?" {
		t.Errorf("user message = %+v", received.Messages[1])
	}
}

func TestOpenAICompleteEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{ID: "chatcmpl-test"})
	}))
	defer server.Close()

	completer := newTestOpenAI(server.URL)
	_, err := completer.Complete(context.Background(), "hello")
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Errorf("Complete() error = %v, want ErrEmptyCompletion", err)
	}
}

func TestOpenAICompleteEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletionResponse(""))
	}))
	defer server.Close()

	completer := newTestOpenAI(server.URL)
	_, err := completer.Complete(context.Background(), "hello")
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Errorf("Complete() error = %v, want ErrEmptyCompletion", err)
	}
}
