// Package terminology defines the vocabulary model and the read-only store
// interface the matching pipeline consumes, together with its backends.
package terminology

import (
	"strings"

	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/errors"
)

// Vocabulary identifies one of the supported coding systems. The set is
// closed; extending it means adding a constant and its URI here.
type Vocabulary string

const (
	SNOMED Vocabulary = "snomed"
	LOINC  Vocabulary = "loinc"
	RXNORM Vocabulary = "rxnorm"
)

// All returns every supported vocabulary in stable order.
func All() []Vocabulary {
	return []Vocabulary{SNOMED, LOINC, RXNORM}
}

// Valid reports whether v is a member of the closed set.
func (v Vocabulary) Valid() bool {
	switch v {
	case SNOMED, LOINC, RXNORM:
		return true
	}
	return false
}

// URI returns the canonical system URI for FHIR-style codings.
func (v Vocabulary) URI() string {
	switch v {
	case SNOMED:
		return "http://snomed.info/sct"
	case LOINC:
		return "http://loinc.org"
	case RXNORM:
		return "http://www.nlm.nih.gov/research/umls/rxnorm"
	}
	return ""
}

// Parse converts a request system name into a Vocabulary.
func Parse(name string) (Vocabulary, error) {
	v := Vocabulary(strings.ToLower(strings.TrimSpace(name)))
	if !v.Valid() {
		return "", errors.NewInvalidVocabularyError(name)
	}
	return v, nil
}

// ParseSystems expands a request systems list into a deduplicated vocabulary
// set. "all" expands to every supported vocabulary. An empty list defaults
// to "all".
func ParseSystems(names []string) ([]Vocabulary, error) {
	if len(names) == 0 {
		return All(), nil
	}

	seen := make(map[Vocabulary]bool, len(names))
	var out []Vocabulary
	for _, name := range names {
		if strings.EqualFold(strings.TrimSpace(name), "all") {
			return All(), nil
		}
		v, err := Parse(name)
		if err != nil {
			return nil, err
		}
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out, nil
}
