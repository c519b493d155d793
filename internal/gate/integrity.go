package gate

import (
	"crypto/subtle"
	"fmt"
	"hash/fnv"
)

// TokenFunc computes an integrity token binding a synthesis request to a
// specific text. Pluggable so the digest can be swapped without touching gate
// logic.
type TokenFunc func(text, secret string) string

// DefaultSharedSecret is the fallback used when TTS_SHARED_SECRET is unset.
// With the fallback in play the token deters only casual endpoint abuse, not
// anyone who reads the client bundle. Deploy a real secret in production.
const DefaultSharedSecret = "rigsy-tts-v1"

// ComputeIntegrityToken returns the hex FNV-1a digest of text and secret.
//
// This is deliberately a cheap non-cryptographic hash: the token is abuse
// friction that ties a synthesis request to text the chat endpoint produced,
// not an authentication boundary.
func ComputeIntegrityToken(text, secret string) string {
	h := fnv.New64a()
	h.Write([]byte(text))
	h.Write([]byte{0})
	h.Write([]byte(secret))
	return fmt.Sprintf("%016x", h.Sum64())
}

// VerifyIntegrityToken recomputes the token for text and compares it with the
// supplied one in constant time.
func VerifyIntegrityToken(fn TokenFunc, text, secret, token string) bool {
	want := fn(text, secret)
	return subtle.ConstantTimeCompare([]byte(want), []byte(token)) == 1
}
