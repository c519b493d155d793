package speech

import (
	"context"
)

// NoOp is a synthesizer that returns a short silent MP3 frame without
// calling any provider. Useful for local development when no API key is
// configured.
type NoOp struct{}

// NewNoOp creates a new NoOp synthesizer.
func NewNoOp() *NoOp {
	return &NoOp{}
}

// silentFrame is a single silent MPEG-1 Layer III frame so clients still
// receive a decodable audio/mpeg body.
var silentFrame = []byte{0xFF, 0xFB, 0x90, 0x00}

// Synthesize returns a minimal silent MP3 payload.
func (n *NoOp) Synthesize(_ context.Context, _ string) ([]byte, error) {
	frame := make([]byte, len(silentFrame))
	copy(frame, silentFrame)
	return frame, nil
}
