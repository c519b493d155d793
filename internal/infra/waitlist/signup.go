package waitlist

import (
	"errors"
	"regexp"
)

// Validation errors. Sentinels so the HTTP handler can map each one to its
// own user-facing message.
var (
	ErrMissingFields = errors.New("email and role are required")
	ErrInvalidEmail  = errors.New("invalid email address")
)

// Signup is one waitlist entry as submitted by the landing page form.
type Signup struct {
	Email string
	Role  string
}

// emailPattern is deliberately loose: one @, no whitespace, a dot in the
// domain. The form is a marketing funnel, not an account system; anything
// stricter rejects real addresses for no gain.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// roleDisplayNames maps the form's role values to the display names used in
// the Notion database select column.
var roleDisplayNames = map[string]string{
	"owner-operator": "Owner-Operator",
	"company-driver": "Company Driver",
	"fleet-manager":  "Fleet Manager",
	"investor":       "Investor",
	"other":          "Other",
}

// Validate checks the signup's shape. Role presence is required; unknown role
// values are accepted and passed through verbatim.
func (s Signup) Validate() error {
	if s.Email == "" || s.Role == "" {
		return ErrMissingFields
	}
	if !emailPattern.MatchString(s.Email) {
		return ErrInvalidEmail
	}
	return nil
}

// RoleDisplayName returns the Notion display name for a form role value.
// Unknown roles pass through unchanged.
func RoleDisplayName(role string) string {
	if display, ok := roleDisplayNames[role]; ok {
		return display
	}
	return role
}
