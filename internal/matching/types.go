// Package matching implements the multi-stage term mapping pipeline:
// candidate generation across vocabulary stores, fuzzy scoring, pattern
// recognition and context-aware re-ranking.
package matching

import (
	"fmt"
	"time"

	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/terminology"
)

// ThresholdUnset marks a request that did not state a fuzzy threshold.
// The pipeline substitutes the configured per-vocabulary threshold.
const ThresholdUnset = -1

// ReasonVocabularyDisabled is the failure reason for vocabularies that
// are switched off in configuration, as opposed to stores that errored.
const ReasonVocabularyDisabled = "vocabulary disabled"

// Stage identifies the pipeline stage that produced a candidate. The order
// doubles as tie-break precedence: a lower stage wins when confidences are
// equal.
type Stage int

const (
	StageExact Stage = iota
	StageSynonym
	StageFuzzy
	StagePattern
)

func (s Stage) String() string {
	switch s {
	case StageExact:
		return "exact"
	case StageSynonym:
		return "synonym"
	case StageFuzzy:
		return "fuzzy"
	case StagePattern:
		return "pattern"
	}
	return "unknown"
}

// MarshalText makes stages render as their lowercase names in JSON.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText restores a stage from its lowercase name so persisted
// responses deserialize back into the enum.
func (s *Stage) UnmarshalText(text []byte) error {
	switch string(text) {
	case "exact":
		*s = StageExact
	case "synonym":
		*s = StageSynonym
	case "fuzzy":
		*s = StageFuzzy
	case "pattern":
		*s = StagePattern
	default:
		return fmt.Errorf("unknown match stage %q", text)
	}
	return nil
}

// MappingResult is one scored candidate for a term.
type MappingResult struct {
	Vocabulary terminology.Vocabulary `json:"vocabulary"`
	Code       string                 `json:"code"`
	Display    string                 `json:"display"`
	Confidence float64                `json:"confidence"`
	MatchType  Stage                  `json:"match_type"`
}

// VocabularyFailure records a vocabulary that could not be consulted for a
// term. It annotates an otherwise successful response.
type VocabularyFailure struct {
	Vocabulary terminology.Vocabulary `json:"vocabulary"`
	Reason     string                 `json:"reason"`
}

// MappingResponse is the full ranked answer for one term.
type MappingResponse struct {
	Term       string              `json:"term"`
	Normalized string              `json:"normalized"`
	Results    []MappingResult     `json:"results"`
	Failures   []VocabularyFailure `json:"failures,omitempty"`
	Elapsed    time.Duration       `json:"-"`
}

// MapRequest carries one term mapping invocation. Systems and MaxResults
// must already be resolved to concrete values by the caller (the transport
// layer applies request defaults). Threshold may be ThresholdUnset, in
// which case the configured per-vocabulary threshold applies.
type MapRequest struct {
	Term       string
	Context    string
	Systems    []terminology.Vocabulary
	Threshold  float64
	MaxResults int
}
