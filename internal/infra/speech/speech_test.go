package speech

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

func TestConfigValidate(t *testing.T) {
	valid := Config{
		Model:   "tts-1",
		Voice:   "onyx",
		Speed:   1.0,
		Timeout: 30 * time.Second,
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"minimum speed", func(c *Config) { c.Speed = 0.25 }, false},
		{"maximum speed", func(c *Config) { c.Speed = 4.0 }, false},
		{"empty model", func(c *Config) { c.Model = "" }, true},
		{"empty voice", func(c *Config) { c.Voice = "" }, true},
		{"speed too slow", func(c *Config) { c.Speed = 0.1 }, true},
		{"speed too fast", func(c *Config) { c.Speed = 4.5 }, true},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid
			tt.mutate(&config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultOpenAIConfig(t *testing.T) {
	config := DefaultOpenAIConfig()
	if err := config.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	if config.Voice != "onyx" {
		t.Errorf("Voice = %q, want onyx", config.Voice)
	}
	if config.Model != "tts-1" {
		t.Errorf("Model = %q, want tts-1", config.Model)
	}
}

// newTestOpenAI points the synthesizer at a local test server.
func newTestOpenAI(serverURL string) *OpenAI {
	synthesizer := NewOpenAI("test-key")
	clientConfig := openai.DefaultConfig("test-key")
	clientConfig.BaseURL = serverURL + "/v1"
	synthesizer.client = openai.NewClientWithConfig(clientConfig)
	return synthesizer
}

func TestOpenAISynthesize(t *testing.T) {
	audio := []byte{0xFF, 0xFB, 0x90, 0x00, 0x01, 0x02, 0x03}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(audio)
	}))
	defer server.Close()

	synthesizer := newTestOpenAI(server.URL)
	got, err := synthesizer.Synthesize(context.Background(), "Howdy driver!")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if !bytes.Equal(got, audio) {
		t.Errorf("audio = %v, want %v", got, audio)
	}
}

func TestOpenAISynthesizeEmptyAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
	}))
	defer server.Close()

	synthesizer := newTestOpenAI(server.URL)
	_, err := synthesizer.Synthesize(context.Background(), "Howdy driver!")
	if !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("Synthesize() error = %v, want ErrEmptyAudio", err)
	}
}

func TestNoOpSynthesize(t *testing.T) {
	synthesizer := NewNoOp()
	audio, err := synthesizer.Synthesize(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if len(audio) == 0 {
		t.Error("Synthesize() returned empty audio")
	}
}
