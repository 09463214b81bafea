// Package nlu implements the lightweight language-understanding layer of the
// grievance bot: utterance normalization, intent classification against a
// fixed synonym table, and fuzzy issue-category matching.
//
// Everything in this package is pure and synchronous — no network calls, no
// goroutines. Typed chat input and speech-to-text transcripts go through the
// same functions, so the matching rules are deliberately tolerant of garbled
// or partial words.
package nlu

import "strings"

// Normalize folds s to lowercase, removes every rune outside [a-z0-9 ], and
// trims surrounding whitespace. It is idempotent: Normalize(Normalize(s)) ==
// Normalize(s). The empty string is a valid result.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
