package terminology

import "context"

// Concept is a single coded entry in a vocabulary.
type Concept struct {
	Vocabulary Vocabulary `json:"vocabulary"`
	Code       string     `json:"code"`
	Display    string     `json:"display"`
	// EntityType is the vocabulary-declared semantic category of the
	// concept (e.g. "disorder", "lab_test", "medication"). Optional.
	EntityType string `json:"entity_type,omitempty"`
}

// Store is the read-only vocabulary provider the pipeline consumes. All
// terms passed in must already be normalized (lowercased, trimmed,
// punctuation-folded). Implementations must bound every call by the
// supplied context; a deadline error is treated by callers as the
// vocabulary being unreachable.
type Store interface {
	// Lookup returns concepts whose primary term equals the normalized term.
	Lookup(ctx context.Context, vocab Vocabulary, normalized string) ([]Concept, error)

	// Synonyms returns concepts reachable through the synonym/abbreviation
	// index (e.g. "htn" resolves to the hypertension concept).
	Synonyms(ctx context.Context, vocab Vocabulary, normalized string) ([]Concept, error)

	// Candidates returns up to budget concepts that are plausible fuzzy
	// matches for the normalized term, selected by a cheap prefilter
	// (shared first character, comparable length). The caller scores them.
	Candidates(ctx context.Context, vocab Vocabulary, normalized string, budget int) ([]Concept, error)
}

// Pinger is implemented by stores that can report backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
