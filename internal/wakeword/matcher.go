// Package wakeword detects the configured trigger phrase in recognized text.
package wakeword

import "strings"

// Matcher is a case-insensitive substring test for one configured phrase.
//
// Matching is exact: "heydexter" does not match "hey dexter".
type Matcher struct {
	phrase string
}

// New returns a matcher for phrase. Surrounding whitespace is ignored.
func New(phrase string) Matcher {
	return Matcher{phrase: strings.ToLower(strings.TrimSpace(phrase))}
}

// Phrase returns the normalized phrase.
func (m Matcher) Phrase() string {
	return m.phrase
}

// Matches reports whether text contains the configured phrase.
func (m Matcher) Matches(text string) bool {
	if m.phrase == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), m.phrase)
}
