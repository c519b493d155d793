package gate

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"rigsy-gateway/pkg/ratelimit"
)

// MaxSpeechTextRunes is the longest text the speech gate will synthesize.
// Synthesis is billed per character, so the cap is tighter than it looks.
const MaxSpeechTextRunes = 500

// SpeechPolicies are the limits applied to every synthesis request, both
// keyed by network identity.
type SpeechPolicies struct {
	Daily  ratelimit.Policy
	Minute ratelimit.Policy
}

// DefaultSpeechPolicies returns the product defaults: 30 syntheses per day
// and 5 per minute per network identity.
func DefaultSpeechPolicies() SpeechPolicies {
	return SpeechPolicies{
		Daily:  ratelimit.Policy{Name: "tts_daily", Limit: 30, Window: 24 * time.Hour},
		Minute: ratelimit.Policy{Name: "tts_minute", Limit: 5, Window: time.Minute},
	}
}

// OriginHeaders carries the request headers inspected by the origin check.
type OriginHeaders struct {
	Origin  string
	Referer string
	Host    string
}

// OriginCheck validates that a request came from one of the site's own
// domains. Substring matching against Origin, Referer, and Host mirrors how
// the allow list is configured (bare domains, no scheme).
//
// Enforced only in production mode; local development and previews run on
// arbitrary hosts.
type OriginCheck struct {
	// Enforce gates whether the check runs at all.
	Enforce bool

	// Allowed is the list of domain substrings accepted in any of the
	// three headers.
	Allowed []string
}

// Permit reports whether the headers satisfy the allow list.
func (c OriginCheck) Permit(hdr OriginHeaders) bool {
	if !c.Enforce {
		return true
	}
	for _, domain := range c.Allowed {
		if domain == "" {
			continue
		}
		if strings.Contains(hdr.Origin, domain) ||
			strings.Contains(hdr.Referer, domain) ||
			strings.Contains(hdr.Host, domain) {
			return true
		}
	}
	return false
}

// SpeechOutcome classifies the result of a speech gate evaluation.
type SpeechOutcome int

const (
	// SpeechAllowed means every check passed; the caller may invoke the
	// synthesis upstream.
	SpeechAllowed SpeechOutcome = iota

	// SpeechOriginDenied means the request did not come from an allowed
	// domain.
	SpeechOriginDenied

	// SpeechInvalid means the request failed shape validation.
	SpeechInvalid

	// SpeechIntegrityDenied means the integrity token did not match the
	// submitted text, which usually means the endpoint is being driven
	// directly rather than through the chat flow.
	SpeechIntegrityDenied

	// SpeechDailyLimited means the network identity hit the daily cap.
	SpeechDailyLimited

	// SpeechMinuteLimited means the network identity hit the per-minute cap.
	SpeechMinuteLimited
)

// String returns the outcome name for logs.
func (o SpeechOutcome) String() string {
	switch o {
	case SpeechAllowed:
		return "allowed"
	case SpeechOriginDenied:
		return "origin-denied"
	case SpeechInvalid:
		return "invalid"
	case SpeechIntegrityDenied:
		return "integrity-denied"
	case SpeechDailyLimited:
		return "daily-limited"
	case SpeechMinuteLimited:
		return "minute-limited"
	default:
		return "unknown"
	}
}

// SpeechVerdict is the result of evaluating one synthesis request.
type SpeechVerdict struct {
	Outcome SpeechOutcome

	// Reason holds the validation failure message when Outcome is
	// SpeechInvalid.
	Reason string
}

// SpeechGate gatekeeps one synthesis request before it reaches the
// text-to-speech upstream.
type SpeechGate struct {
	limiter  *ratelimit.Limiter
	policies SpeechPolicies
	origin   OriginCheck
	secret   string
	tokenFn  TokenFunc
}

// NewSpeechGate creates a SpeechGate. An empty secret falls back to
// DefaultSharedSecret and a nil token function to ComputeIntegrityToken.
func NewSpeechGate(limiter *ratelimit.Limiter, policies SpeechPolicies, origin OriginCheck, secret string, tokenFn TokenFunc) *SpeechGate {
	if secret == "" {
		secret = DefaultSharedSecret
	}
	if tokenFn == nil {
		tokenFn = ComputeIntegrityToken
	}
	return &SpeechGate{limiter: limiter, policies: policies, origin: origin, secret: secret, tokenFn: tokenFn}
}

// Evaluate runs the origin check, shape validation, the integrity check, and
// the daily and minute limits, in that order. Cheap checks run first so
// abusive traffic is turned away before it touches counter state.
func (g *SpeechGate) Evaluate(ctx context.Context, text, token string, hdr OriginHeaders, clientKey string) (*SpeechVerdict, error) {
	if !g.origin.Permit(hdr) {
		return &SpeechVerdict{Outcome: SpeechOriginDenied}, nil
	}

	if text == "" {
		return &SpeechVerdict{Outcome: SpeechInvalid, Reason: "Please provide text to convert."}, nil
	}
	if utf8.RuneCountInString(text) > MaxSpeechTextRunes {
		return &SpeechVerdict{Outcome: SpeechInvalid, Reason: "Text is too long for voice synthesis."}, nil
	}

	if !VerifyIntegrityToken(g.tokenFn, text, g.secret, token) {
		return &SpeechVerdict{Outcome: SpeechIntegrityDenied}, nil
	}

	daily, err := g.limiter.CheckAndConsume(ctx, g.policies.Daily, clientKey)
	if err != nil {
		return nil, fmt.Errorf("daily limit check: %w", err)
	}
	if !daily.Allowed {
		return &SpeechVerdict{Outcome: SpeechDailyLimited}, nil
	}

	minute, err := g.limiter.CheckAndConsume(ctx, g.policies.Minute, clientKey)
	if err != nil {
		return nil, fmt.Errorf("minute limit check: %w", err)
	}
	if !minute.Allowed {
		return &SpeechVerdict{Outcome: SpeechMinuteLimited}, nil
	}

	return &SpeechVerdict{Outcome: SpeechAllowed}, nil
}

// Token computes the integrity token this gate expects for the given text.
// Exposed so the chat handler can stamp its responses for the voice player.
func (g *SpeechGate) Token(text string) string {
	return g.tokenFn(text, g.secret)
}
