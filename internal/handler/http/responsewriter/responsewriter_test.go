package responsewriter

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWrapDefaults(t *testing.T) {
	w := Wrap(httptest.NewRecorder())

	if w.StatusCode() != http.StatusOK {
		t.Errorf("StatusCode = %d, want default 200", w.StatusCode())
	}
	if w.BytesWritten() != 0 {
		t.Errorf("BytesWritten = %d, want 0", w.BytesWritten())
	}
}

func TestWriteHeader(t *testing.T) {
	tests := []struct {
		name string
		code int
	}{
		{name: "ok", code: http.StatusOK},
		{name: "rate limited", code: http.StatusTooManyRequests},
		{name: "forbidden", code: http.StatusForbidden},
		{name: "server error", code: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			w := Wrap(rec)
			w.WriteHeader(tt.code)

			if w.StatusCode() != tt.code {
				t.Errorf("StatusCode = %d, want %d", w.StatusCode(), tt.code)
			}
			if rec.Code != tt.code {
				t.Errorf("underlying Code = %d, want %d", rec.Code, tt.code)
			}
		})
	}
}

func TestWriteHeaderSecondCallIgnored(t *testing.T) {
	rec := httptest.NewRecorder()
	w := Wrap(rec)

	w.WriteHeader(http.StatusTooManyRequests)
	w.WriteHeader(http.StatusOK)

	if w.StatusCode() != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want first code to stick", w.StatusCode())
	}
}

func TestWriteRecordsBytes(t *testing.T) {
	rec := httptest.NewRecorder()
	w := Wrap(rec)

	audio := []byte{0xFF, 0xFB, 0x90, 0x00, 0x01, 0x02}
	n, err := w.Write(audio)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != len(audio) {
		t.Errorf("n = %d, want %d", n, len(audio))
	}
	if w.BytesWritten() != len(audio) {
		t.Errorf("BytesWritten = %d, want %d", w.BytesWritten(), len(audio))
	}

	// Write without an explicit WriteHeader commits an implicit 200.
	if w.StatusCode() != http.StatusOK {
		t.Errorf("StatusCode = %d, want implicit 200", w.StatusCode())
	}
}

func TestWriteAccumulatesAcrossCalls(t *testing.T) {
	w := Wrap(httptest.NewRecorder())

	_, _ = w.Write([]byte(`{"response":`))
	_, _ = w.Write([]byte(`"hello"}`))

	if w.BytesWritten() != len(`{"response":"hello"}`) {
		t.Errorf("BytesWritten = %d, want total across writes", w.BytesWritten())
	}
}

func TestFlushDoesNotPanic(t *testing.T) {
	// httptest.ResponseRecorder implements http.Flusher.
	w := Wrap(httptest.NewRecorder())
	w.Flush()

	// A writer without Flusher support is a no-op, not a panic.
	Wrap(plainWriter{httptest.NewRecorder()}).Flush()
}

type plainWriter struct{ inner http.ResponseWriter }

func (p plainWriter) Header() http.Header         { return p.inner.Header() }
func (p plainWriter) Write(b []byte) (int, error) { return p.inner.Write(b) }
func (p plainWriter) WriteHeader(code int)        { p.inner.WriteHeader(code) }

func TestUnwrap(t *testing.T) {
	rec := httptest.NewRecorder()
	w := Wrap(rec)

	if w.Unwrap() != http.ResponseWriter(rec) {
		t.Error("Unwrap should return the underlying writer")
	}
}

func TestHandlerIntegration(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"Forbidden"}`))
	})

	rec := httptest.NewRecorder()
	w := Wrap(rec)
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/tts", nil))

	if w.StatusCode() != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", w.StatusCode())
	}
	if w.BytesWritten() != len(`{"error":"Forbidden"}`) {
		t.Errorf("BytesWritten = %d, want body length", w.BytesWritten())
	}
}
