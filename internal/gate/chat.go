package gate

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"rigsy-gateway/pkg/ratelimit"
)

// MaxChatMessageRunes is the longest user message the chat gate accepts.
// Responses are spoken aloud, so questions are expected to be short.
const MaxChatMessageRunes = 300

// ChatPolicies are the three limits applied to every chat turn. Session is
// keyed by the client-supplied session token; Daily and Minute are keyed by
// network identity.
type ChatPolicies struct {
	Session ratelimit.Policy
	Daily   ratelimit.Policy
	Minute  ratelimit.Policy
}

// DefaultChatPolicies returns the product defaults: three free questions per
// 30-minute session, 20 per day and 5 per minute per network identity.
func DefaultChatPolicies() ChatPolicies {
	return ChatPolicies{
		Session: ratelimit.Policy{Name: "chat_session", Limit: 3, Window: 30 * time.Minute},
		Daily:   ratelimit.Policy{Name: "chat_daily", Limit: 20, Window: 24 * time.Hour},
		Minute:  ratelimit.Policy{Name: "chat_minute", Limit: 5, Window: time.Minute},
	}
}

// ChatOutcome classifies the result of a chat gate evaluation.
type ChatOutcome int

const (
	// ChatAllowed means every check passed; the caller may invoke the
	// completion upstream.
	ChatAllowed ChatOutcome = iota

	// ChatInvalid means the request failed shape validation. A client
	// error, not a rate-limit event.
	ChatInvalid

	// ChatSessionExhausted means the session used its free questions. A
	// product funnel event: surfaced as a signup prompt, not an error.
	ChatSessionExhausted

	// ChatDailyLimited means the network identity hit the daily cap.
	ChatDailyLimited

	// ChatMinuteLimited means the network identity hit the per-minute cap.
	ChatMinuteLimited

	// ChatDeflected means a suspicious pattern matched. The message never
	// reaches the upstream; the caller returns the canned deflection.
	ChatDeflected
)

// String returns the outcome name for logs.
func (o ChatOutcome) String() string {
	switch o {
	case ChatAllowed:
		return "allowed"
	case ChatInvalid:
		return "invalid"
	case ChatSessionExhausted:
		return "session-exhausted"
	case ChatDailyLimited:
		return "daily-limited"
	case ChatMinuteLimited:
		return "minute-limited"
	case ChatDeflected:
		return "deflected"
	default:
		return "unknown"
	}
}

// ChatVerdict is the full result of evaluating one chat turn.
type ChatVerdict struct {
	Outcome ChatOutcome

	// Reason holds the validation failure message when Outcome is
	// ChatInvalid.
	Reason string

	// SessionCount is the number of questions consumed in the current
	// session window, including this one when the turn was allowed.
	SessionCount int

	// LastFreeQuestion is true when this allowed turn consumed the final
	// free slot of the session.
	LastFreeQuestion bool

	// PatternLabel names the matched rule when Outcome is ChatDeflected.
	PatternLabel string
}

// ChatGate gatekeeps one conversational turn before it reaches the
// completion upstream.
type ChatGate struct {
	limiter  *ratelimit.Limiter
	policies ChatPolicies
	patterns *PatternSet
}

// NewChatGate creates a ChatGate. A nil patterns set falls back to the
// built-in rules.
func NewChatGate(limiter *ratelimit.Limiter, policies ChatPolicies, patterns *PatternSet) *ChatGate {
	if patterns == nil {
		patterns = DefaultSuspiciousPatterns()
	}
	return &ChatGate{limiter: limiter, policies: policies, patterns: patterns}
}

// Evaluate runs shape validation, the session, daily, and minute limits, and
// the content filter, in that order. All limiting happens before the content
// filter so an already-limited client learns nothing about the filter, and
// everything happens before any upstream call is attempted.
//
// Check ordering is observable: a turn denied by the minute limit has already
// consumed a session and daily slot. That matches the deployed behavior and
// keeps the session counter honest about attempts, not completions.
func (g *ChatGate) Evaluate(ctx context.Context, message, sessionID, clientKey string) (*ChatVerdict, error) {
	if message == "" {
		return &ChatVerdict{Outcome: ChatInvalid, Reason: "Please provide a valid message."}, nil
	}
	if sessionID == "" {
		return &ChatVerdict{Outcome: ChatInvalid, Reason: "Session ID is required."}, nil
	}
	if utf8.RuneCountInString(message) > MaxChatMessageRunes {
		return &ChatVerdict{Outcome: ChatInvalid, Reason: "Keep it short, driver! Try a shorter question."}, nil
	}

	session, err := g.limiter.CheckAndConsume(ctx, g.policies.Session, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session limit check: %w", err)
	}
	if !session.Allowed {
		return &ChatVerdict{
			Outcome:      ChatSessionExhausted,
			SessionCount: session.Count,
		}, nil
	}

	daily, err := g.limiter.CheckAndConsume(ctx, g.policies.Daily, clientKey)
	if err != nil {
		return nil, fmt.Errorf("daily limit check: %w", err)
	}
	if !daily.Allowed {
		return &ChatVerdict{Outcome: ChatDailyLimited, SessionCount: session.Count}, nil
	}

	minute, err := g.limiter.CheckAndConsume(ctx, g.policies.Minute, clientKey)
	if err != nil {
		return nil, fmt.Errorf("minute limit check: %w", err)
	}
	if !minute.Allowed {
		return &ChatVerdict{Outcome: ChatMinuteLimited, SessionCount: session.Count}, nil
	}

	if label, matched := g.patterns.Match(message); matched {
		return &ChatVerdict{
			Outcome:      ChatDeflected,
			SessionCount: session.Count,
			PatternLabel: label,
		}, nil
	}

	return &ChatVerdict{
		Outcome:          ChatAllowed,
		SessionCount:     session.Count,
		LastFreeQuestion: session.Count == g.policies.Session.Limit,
	}, nil
}
