package matching

import (
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/terminology"
)

// maxContextBonus bounds the additive confidence adjustment.
const maxContextBonus = 0.1

// defaultLexicons are the built-in per-vocabulary entity-type token sets
// consulted when the configuration does not override them. A candidate
// gains confidence when the request context shares tokens with its
// vocabulary's lexicon.
var defaultLexicons = map[terminology.Vocabulary][]string{
	terminology.SNOMED: {"diagnosis", "condition", "disorder", "disease", "symptom", "finding", "procedure", "history"},
	terminology.LOINC:  {"test", "level", "lab", "laboratory", "panel", "result", "measurement", "specimen", "value"},
	terminology.RXNORM: {"drug", "medication", "dose", "dosage", "mg", "tablet", "prescription", "daily", "oral"},
}

// ContextRanker adjusts candidate confidences using the free-text clinical
// context accompanying a term. Without context it is the identity
// transform; with context each candidate gains up to maxContextBonus
// proportional to the token overlap between the context and its
// vocabulary's entity-type lexicon.
type ContextRanker struct {
	lexicons map[terminology.Vocabulary]map[string]bool
}

// NewContextRanker builds a ranker from per-vocabulary entity-type terms.
// Vocabularies missing from overrides fall back to the built-in lexicons.
func NewContextRanker(overrides map[terminology.Vocabulary][]string) *ContextRanker {
	lexicons := make(map[terminology.Vocabulary]map[string]bool, len(defaultLexicons))
	for vocab, words := range defaultLexicons {
		lexicons[vocab] = buildLexicon(words)
	}
	for vocab, words := range overrides {
		if len(words) > 0 {
			lexicons[vocab] = buildLexicon(words)
		}
	}
	return &ContextRanker{lexicons: lexicons}
}

func buildLexicon(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		for _, token := range terminology.Tokenize(terminology.NormalizeTerm(w)) {
			set[token] = true
		}
	}
	return set
}

// Rerank applies the context bonus in place and returns the slice. It
// never adds or removes candidates; ordering is left to the caller's
// final sort.
func (r *ContextRanker) Rerank(results []MappingResult, context string) []MappingResult {
	if context == "" || len(results) == 0 {
		return results
	}

	contextTokens := terminology.Tokenize(terminology.NormalizeTerm(context))
	if len(contextTokens) == 0 {
		return results
	}

	for i := range results {
		bonus := r.bonus(results[i].Vocabulary, contextTokens)
		if bonus > 0 {
			results[i].Confidence = clamp01(results[i].Confidence + bonus)
		}
	}
	return results
}

// bonus is maxContextBonus scaled by the fraction of context tokens found
// in the vocabulary's lexicon.
func (r *ContextRanker) bonus(vocab terminology.Vocabulary, contextTokens []string) float64 {
	lexicon, ok := r.lexicons[vocab]
	if !ok || len(lexicon) == 0 {
		return 0
	}

	matched := 0
	for _, token := range contextTokens {
		if lexicon[token] {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	return maxContextBonus * float64(matched) / float64(len(contextTokens))
}
