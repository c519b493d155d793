// Package gate implements the request gatekeepers that front the expensive
// upstream calls: ChatGate for language-model completions and SpeechGate for
// speech synthesis. Both validate, rate-limit, and filter a request before
// any upstream credit is spent.
package gate

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// PatternRule is one suspicious-input matching rule. Rules are evaluated in
// order and the first match wins; the label identifies the rule in logs and
// metrics without echoing the pattern itself.
type PatternRule struct {
	Label   string
	Matcher *regexp.Regexp
}

// PatternSet is an ordered, immutable set of suspicious-input rules.
type PatternSet struct {
	rules []PatternRule
}

// NewPatternSet builds a PatternSet from the given rules.
func NewPatternSet(rules []PatternRule) *PatternSet {
	return &PatternSet{rules: rules}
}

// Match tests the message against every rule in order and returns the label
// of the first matching rule.
func (s *PatternSet) Match(message string) (label string, matched bool) {
	for _, rule := range s.rules {
		if rule.Matcher.MatchString(message) {
			return rule.Label, true
		}
	}
	return "", false
}

// Len returns the number of rules in the set.
func (s *PatternSet) Len() int {
	return len(s.rules)
}

// DefaultSuspiciousPatterns returns the built-in rules covering known prompt
// injection, jailbreak, and off-topic-task phrasings. All matching is
// case-insensitive.
func DefaultSuspiciousPatterns() *PatternSet {
	mk := func(label, expr string) PatternRule {
		return PatternRule{Label: label, Matcher: regexp.MustCompile(`(?i)` + expr)}
	}
	return NewPatternSet([]PatternRule{
		// Qualifiers stack in the wild ("ignore all previous instructions"),
		// so the rule accepts one or more of them.
		mk("ignore-instructions", `ignore\s+((previous|above|all)\s+)+instructions`),
		mk("disregard-instructions", `disregard\s+(previous|above|all)`),
		mk("forget-context", `forget\s+(everything|your|all)`),
		mk("persona-override", `you\s+are\s+now`),
		mk("act-as", `act\s+as\s+(if|a|an|though)`),
		mk("pretend", `pretend\s+(to\s+be|you)`),
		mk("roleplay", `roleplay\s+as`),
		mk("jailbreak", `jailbreak`),
		mk("dan-mode", `dan\s+mode`),
		mk("bypass", `bypass\s+(your|the|security)`),
		mk("reveal-prompt", `reveal\s+(your|the)\s+(prompt|instructions|system)`),
		mk("probe-prompt", `what\s+(are|is)\s+your\s+(instructions|prompt|system)`),
		mk("repeat-prompt", `repeat\s+(your|the)\s+(prompt|instructions)`),
		mk("inst-marker-open", `\[inst\]`),
		mk("inst-marker-close", `\[/inst\]`),
		mk("chatml-marker", `<\|im_start\|>`),
		mk("system-role", `system:`),
		mk("assistant-role", `assistant:`),
		mk("off-topic-writing", `write\s+(me\s+)?(a|an|some)\s+(essay|code|script|story)`),
		mk("off-topic-codegen", `generate\s+(code|script)`),
		mk("off-topic-translation", `translate\s+to`),
	})
}

// patternFile is the YAML shape for externally supplied rules.
type patternFile struct {
	Patterns []struct {
		Label string `yaml:"label"`
		Match string `yaml:"match"`
	} `yaml:"patterns"`
}

// LoadPatternsFile reads additional rules from a YAML file and returns the
// default set extended with them. File rules are appended after the built-in
// rules, so built-in labels win when both match.
//
// File format:
//
//	patterns:
//	  - label: homework-request
//	    match: do\s+my\s+homework
func LoadPatternsFile(path string) (*PatternSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read patterns file: %w", err)
	}

	var file patternFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse patterns file: %w", err)
	}

	base := DefaultSuspiciousPatterns()
	rules := make([]PatternRule, 0, len(base.rules)+len(file.Patterns))
	rules = append(rules, base.rules...)

	for i, p := range file.Patterns {
		if p.Label == "" {
			return nil, fmt.Errorf("patterns[%d]: label is required", i)
		}
		re, err := regexp.Compile(`(?i)` + p.Match)
		if err != nil {
			return nil, fmt.Errorf("patterns[%d] (%s): %w", i, p.Label, err)
		}
		rules = append(rules, PatternRule{Label: p.Label, Matcher: re})
	}

	return NewPatternSet(rules), nil
}
