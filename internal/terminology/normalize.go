package terminology

import (
	"strings"
	"unicode"
)

// NormalizeTerm derives the canonical lookup form of a free-text term:
// lowercased, trimmed, punctuation folded to spaces, whitespace collapsed.
// The same normalization is applied to stored terms, queries and contexts
// so that lookups compare like with like.
func NormalizeTerm(term string) string {
	var b strings.Builder
	b.Grow(len(term))

	lastSpace := true
	for _, r := range strings.ToLower(term) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		default:
			// Punctuation and whitespace both fold to a single space.
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}

	return strings.TrimSpace(b.String())
}

// Tokenize splits a normalized string into its word tokens.
func Tokenize(normalized string) []string {
	if normalized == "" {
		return nil
	}
	return strings.Fields(normalized)
}

// TokenSet returns the unique tokens of a normalized string.
func TokenSet(normalized string) map[string]bool {
	tokens := Tokenize(normalized)
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}
