package matching

import (
	"context"
	"sort"
	"time"

	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/config"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/errors"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/logger"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/metrics"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/terminology"
)

// confidence values fixed per stage.
const (
	exactConfidence   = 1.0
	synonymConfidence = 0.95
	// shortCircuitConfidence is the floor above which accumulated matches
	// count toward skipping the remaining stages of a vocabulary.
	shortCircuitConfidence = 0.95
)

// vocabularySettings is the per-vocabulary slice of configuration the
// pipeline consults at call time.
type vocabularySettings struct {
	enabled   bool
	threshold float64
}

// Pipeline maps a free-text term to ranked vocabulary codes. It owns no
// mutable state beyond its collaborators and is safe for concurrent use.
type Pipeline struct {
	store            terminology.Store
	scorer           *Scorer
	ranker           *ContextRanker
	budget           int
	defaultThreshold float64
	vocabs           map[terminology.Vocabulary]vocabularySettings
	logger           logger.Logger
}

// NewPipeline wires a pipeline from its collaborators and the matching
// configuration.
func NewPipeline(store terminology.Store, scorer *Scorer, ranker *ContextRanker, cfg *config.Config, log logger.Logger) *Pipeline {
	vocabs := make(map[terminology.Vocabulary]vocabularySettings, len(cfg.Vocabularies))
	for name, vc := range cfg.Vocabularies {
		vocab, err := terminology.Parse(name)
		if err != nil {
			continue
		}
		vocabs[vocab] = vocabularySettings{enabled: vc.Enabled, threshold: vc.Threshold}
	}

	budget := cfg.Matching.CandidateBudget
	if budget <= 0 {
		budget = 200
	}
	defaultThreshold := cfg.Matching.DefaultThreshold
	if defaultThreshold <= 0 {
		defaultThreshold = 0.7
	}

	return &Pipeline{
		store:            store,
		scorer:           scorer,
		ranker:           ranker,
		budget:           budget,
		defaultThreshold: defaultThreshold,
		vocabs:           vocabs,
		logger:           log.WithFields(map[string]interface{}{"component": "match-pipeline"}),
	}
}

// MapTerm runs the staged match for one term. Vocabularies that cannot be
// consulted are skipped and reported in the response's Failures; the call
// only errors on caller mistakes (empty term, bad threshold, bad
// vocabulary).
func (p *Pipeline) MapTerm(ctx context.Context, req MapRequest) (*MappingResponse, error) {
	start := time.Now()

	normalized := terminology.NormalizeTerm(req.Term)
	if normalized == "" {
		metrics.MappingFailures.WithLabelValues(string(errors.ErrCodeEmptyTerm)).Inc()
		return nil, errors.NewEmptyTermError()
	}
	if req.Threshold != ThresholdUnset && (req.Threshold < 0 || req.Threshold > 1) {
		metrics.MappingFailures.WithLabelValues(string(errors.ErrCodeInvalidParameter)).Inc()
		return nil, errors.NewInvalidParameterError("fuzzy_threshold must be within [0, 1]")
	}
	if req.MaxResults <= 0 {
		metrics.MappingFailures.WithLabelValues(string(errors.ErrCodeInvalidParameter)).Inc()
		return nil, errors.NewInvalidParameterError("max_results must be positive")
	}

	systems := req.Systems
	if len(systems) == 0 {
		systems = terminology.All()
	}
	for _, vocab := range systems {
		if !vocab.Valid() {
			metrics.MappingFailures.WithLabelValues(string(errors.ErrCodeInvalidVocabulary)).Inc()
			return nil, errors.NewInvalidVocabularyError(string(vocab))
		}
	}

	resp := &MappingResponse{
		Term:       req.Term,
		Normalized: normalized,
		Results:    []MappingResult{},
	}

	var merged []MappingResult
	for _, vocab := range systems {
		settings, known := p.vocabs[vocab]
		if known && !settings.enabled {
			resp.Failures = append(resp.Failures, VocabularyFailure{
				Vocabulary: vocab,
				Reason:     ReasonVocabularyDisabled,
			})
			continue
		}

		// An explicit request threshold always wins; the configured
		// per-vocabulary threshold is only the fallback.
		threshold := req.Threshold
		if threshold == ThresholdUnset {
			threshold = p.defaultThreshold
			if known && settings.threshold > 0 {
				threshold = settings.threshold
			}
		}

		results, err := p.mapVocabulary(ctx, vocab, normalized, threshold, req.MaxResults)
		if err != nil {
			metrics.VocabularyUnavailable.WithLabelValues(string(vocab)).Inc()
			p.logger.Warn("vocabulary skipped", map[string]interface{}{
				"vocabulary": string(vocab),
				"term":       normalized,
				"error":      err.Error(),
			})
			resp.Failures = append(resp.Failures, VocabularyFailure{
				Vocabulary: vocab,
				Reason:     err.Error(),
			})
			continue
		}
		merged = append(merged, results...)
	}

	merged = dedupe(merged)
	merged = p.ranker.Rerank(merged, req.Context)
	sortResults(merged)
	if len(merged) > req.MaxResults {
		merged = merged[:req.MaxResults]
	}
	resp.Results = merged
	resp.Elapsed = time.Since(start)

	for _, r := range resp.Results {
		metrics.TermsMapped.WithLabelValues(string(r.Vocabulary), r.MatchType.String()).Inc()
		metrics.MappingDuration.WithLabelValues(string(r.Vocabulary)).Observe(resp.Elapsed.Seconds())
	}

	return resp, nil
}

// mapVocabulary runs the four stages against one vocabulary. A store error
// on any stage abandons the vocabulary; partial stage output is discarded
// so a flaky store cannot produce half-ranked answers.
func (p *Pipeline) mapVocabulary(ctx context.Context, vocab terminology.Vocabulary, normalized string, threshold float64, maxResults int) ([]MappingResult, error) {
	var results []MappingResult

	// Stage 1: exact lookup.
	concepts, err := p.store.Lookup(ctx, vocab, normalized)
	if err != nil {
		return nil, err
	}
	for _, c := range concepts {
		results = append(results, conceptResult(c, exactConfidence, StageExact))
	}
	if shortCircuit(results, maxResults) {
		return results, nil
	}

	// Stage 2: synonym and abbreviation index.
	concepts, err = p.store.Synonyms(ctx, vocab, normalized)
	if err != nil {
		return nil, err
	}
	for _, c := range concepts {
		results = append(results, conceptResult(c, synonymConfidence, StageSynonym))
	}
	if shortCircuit(results, maxResults) {
		return results, nil
	}

	// Stage 3: fuzzy scoring over a budget-bounded candidate set.
	candidates, err := p.store.Candidates(ctx, vocab, normalized, p.budget)
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		score := p.scorer.Score(normalized, terminology.NormalizeTerm(c.Display))
		if score >= threshold {
			results = append(results, conceptResult(c, score, StageFuzzy))
		}
	}
	if shortCircuit(results, maxResults) {
		return results, nil
	}

	// Stage 4: recognized clinical shorthand resolved back through the
	// store.
	for _, exp := range expandPatterns(normalized) {
		concepts, err = p.store.Lookup(ctx, vocab, exp.term)
		if err != nil {
			return nil, err
		}
		for _, c := range concepts {
			results = append(results, conceptResult(c, exp.confidence, StagePattern))
		}
	}

	return results, nil
}

func conceptResult(c terminology.Concept, confidence float64, stage Stage) MappingResult {
	return MappingResult{
		Vocabulary: c.Vocabulary,
		Code:       c.Code,
		Display:    c.Display,
		Confidence: confidence,
		MatchType:  stage,
	}
}

// shortCircuit reports whether enough high-confidence matches have
// accumulated to skip the remaining stages of the current vocabulary.
func shortCircuit(results []MappingResult, maxResults int) bool {
	high := 0
	for _, r := range results {
		if r.Confidence >= shortCircuitConfidence {
			high++
		}
	}
	return high >= maxResults
}

// dedupe keeps the best occurrence per (vocabulary, code): highest
// confidence, earlier stage on ties.
func dedupe(results []MappingResult) []MappingResult {
	type key struct {
		vocab terminology.Vocabulary
		code  string
	}

	best := make(map[key]int, len(results))
	out := results[:0]
	for _, r := range results {
		k := key{r.Vocabulary, r.Code}
		idx, seen := best[k]
		if !seen {
			best[k] = len(out)
			out = append(out, r)
			continue
		}
		kept := out[idx]
		if r.Confidence > kept.Confidence ||
			(r.Confidence == kept.Confidence && r.MatchType < kept.MatchType) {
			out[idx] = r
		}
	}
	return out
}

// sortResults orders by confidence descending, then stage precedence,
// then code, so equal inputs always produce identical output.
func sortResults(results []MappingResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		if results[i].MatchType != results[j].MatchType {
			return results[i].MatchType < results[j].MatchType
		}
		return results[i].Code < results[j].Code
	})
}
