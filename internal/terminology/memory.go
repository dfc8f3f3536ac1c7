package terminology

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// MemoryStore is an in-process Store backed by per-vocabulary indexes. It
// is used by tests, the CLI and development deployments. Safe for
// concurrent readers once loading is done.
type MemoryStore struct {
	mu     sync.RWMutex
	vocabs map[Vocabulary]*vocabIndex
}

// vocabIndex holds one vocabulary's lookup structures.
type vocabIndex struct {
	byTerm    map[string][]Concept // normalized primary term -> concepts
	synonyms  map[string][]Concept // normalized synonym -> concepts
	all       []indexedConcept     // candidate scan list
	byInitial map[byte][]int       // first byte of normalized term -> offsets into all
}

type indexedConcept struct {
	normalized string
	concept    Concept
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{vocabs: make(map[Vocabulary]*vocabIndex)}
}

func (s *MemoryStore) index(vocab Vocabulary) *vocabIndex {
	idx, ok := s.vocabs[vocab]
	if !ok {
		idx = &vocabIndex{
			byTerm:    make(map[string][]Concept),
			synonyms:  make(map[string][]Concept),
			byInitial: make(map[byte][]int),
		}
		s.vocabs[vocab] = idx
	}
	return idx
}

// AddConcept registers a concept under its display term.
func (s *MemoryStore) AddConcept(c Concept) {
	s.mu.Lock()
	defer s.mu.Unlock()

	normalized := NormalizeTerm(c.Display)
	if normalized == "" {
		return
	}

	idx := s.index(c.Vocabulary)
	idx.byTerm[normalized] = append(idx.byTerm[normalized], c)
	idx.all = append(idx.all, indexedConcept{normalized: normalized, concept: c})
	initial := normalized[0]
	idx.byInitial[initial] = append(idx.byInitial[initial], len(idx.all)-1)
}

// AddSynonym maps an alternative spelling or abbreviation to a concept.
func (s *MemoryStore) AddSynonym(vocab Vocabulary, synonym string, c Concept) {
	s.mu.Lock()
	defer s.mu.Unlock()

	normalized := NormalizeTerm(synonym)
	if normalized == "" {
		return
	}
	idx := s.index(vocab)
	idx.synonyms[normalized] = append(idx.synonyms[normalized], c)
}

// Lookup implements Store.
func (s *MemoryStore) Lookup(ctx context.Context, vocab Vocabulary, normalized string) ([]Concept, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.vocabs[vocab]
	if !ok {
		return nil, nil
	}
	return append([]Concept(nil), idx.byTerm[normalized]...), nil
}

// Synonyms implements Store.
func (s *MemoryStore) Synonyms(ctx context.Context, vocab Vocabulary, normalized string) ([]Concept, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.vocabs[vocab]
	if !ok {
		return nil, nil
	}
	return append([]Concept(nil), idx.synonyms[normalized]...), nil
}

// Candidates implements Store. The prefilter keeps concepts sharing the
// query's first character, then fills the remaining budget with concepts
// whose length is within half the query length.
func (s *MemoryStore) Candidates(ctx context.Context, vocab Vocabulary, normalized string, budget int) ([]Concept, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if normalized == "" || budget <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.vocabs[vocab]
	if !ok {
		return nil, nil
	}

	out := make([]Concept, 0, budget)
	seen := make(map[int]bool)

	// First-character bucket first: these are the cheapest plausible hits.
	for _, off := range idx.byInitial[normalized[0]] {
		if len(out) >= budget {
			return out, nil
		}
		out = append(out, idx.all[off].concept)
		seen[off] = true
	}

	// Fill the remaining budget with length-comparable terms regardless of
	// initial, so transposed or misspelled first letters still surface.
	for off, entry := range idx.all {
		if len(out) >= budget {
			break
		}
		if seen[off] {
			continue
		}
		if lengthComparable(normalized, entry.normalized) {
			out = append(out, entry.concept)
		}
	}

	return out, nil
}

// lengthComparable is the cheap length-window filter applied before fuzzy
// scoring: candidate length within 50% of the query length.
func lengthComparable(query, candidate string) bool {
	qlen, clen := len(query), len(candidate)
	if qlen == 0 || clen == 0 {
		return false
	}
	lower := qlen - qlen/2
	upper := qlen + qlen/2
	return clen >= lower && clen <= upper
}

// seedFile is the JSON document format accepted by LoadFile.
type seedFile struct {
	Concepts []seedConcept `json:"concepts"`
	Synonyms []seedSynonym `json:"synonyms"`
}

type seedConcept struct {
	Vocabulary string `json:"vocabulary"`
	Code       string `json:"code"`
	Display    string `json:"display"`
	EntityType string `json:"entity_type,omitempty"`
}

type seedSynonym struct {
	Vocabulary string `json:"vocabulary"`
	Term       string `json:"term"`
	Code       string `json:"code"`
}

// LoadFile populates the store from a JSON seed document. Synonym entries
// reference concepts by code and must follow the concept definitions.
func (s *MemoryStore) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	return s.LoadSeed(data)
}

// LoadSeed populates the store from seed JSON bytes.
func (s *MemoryStore) LoadSeed(data []byte) error {
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed: %w", err)
	}

	byCode := make(map[string]Concept, len(seed.Concepts))
	for _, sc := range seed.Concepts {
		vocab, err := Parse(sc.Vocabulary)
		if err != nil {
			return err
		}
		c := Concept{
			Vocabulary: vocab,
			Code:       sc.Code,
			Display:    sc.Display,
			EntityType: sc.EntityType,
		}
		s.AddConcept(c)
		byCode[sc.Vocabulary+"|"+sc.Code] = c
	}

	for _, syn := range seed.Synonyms {
		vocab, err := Parse(syn.Vocabulary)
		if err != nil {
			return err
		}
		c, ok := byCode[syn.Vocabulary+"|"+syn.Code]
		if !ok {
			return fmt.Errorf("synonym %q references unknown code %s/%s", syn.Term, syn.Vocabulary, syn.Code)
		}
		s.AddSynonym(vocab, syn.Term, c)
	}

	return nil
}
