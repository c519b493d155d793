package completion

import (
	"context"
)

// NoOp is a completer that returns a canned reply without calling any
// provider. Useful for local development when no API key is configured.
type NoOp struct{}

// NewNoOp creates a new NoOp completer.
func NewNoOp() *NoOp {
	return &NoOp{}
}

// Complete returns a fixed friendly reply. The reply acknowledges the
// question so the chat UI stays usable during development.
func (n *NoOp) Complete(_ context.Context, _ string) (string, error) {
	return "Hey driver! I'm running in offline mode right now, but ask me again once I'm hooked up and I'll help you out.", nil
}
