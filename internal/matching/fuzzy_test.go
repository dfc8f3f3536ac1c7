package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/config"
)

func createTestScorer() *Scorer {
	return NewScorer(config.WeightsConfig{
		EditDistance: 0.35,
		Phonetic:     0.20,
		TokenOverlap: 0.30,
		Substring:    0.15,
	})
}

func TestScorer_Reflexive(t *testing.T) {
	scorer := createTestScorer()
	for _, s := range []string{"diabetes", "diabetes mellitus", "hemoglobin a1c", "x"} {
		assert.Equal(t, 1.0, scorer.Score(s, s), "score(%q, %q)", s, s)
	}
}

func TestScorer_Symmetric(t *testing.T) {
	scorer := createTestScorer()
	pairs := [][2]string{
		{"diabetis", "diabetes"},
		{"hypertension", "hypotension"},
		{"mellitus diabetes", "diabetes mellitus"},
		{"aspirin", "metformin"},
	}
	for _, p := range pairs {
		assert.Equal(t, scorer.Score(p[0], p[1]), scorer.Score(p[1], p[0]),
			"score(%q, %q)", p[0], p[1])
	}
}

func TestScorer_Bounds(t *testing.T) {
	scorer := createTestScorer()
	pairs := [][2]string{
		{"a", "completely unrelated phrase with many tokens"},
		{"diabetes", "diabetes mellitus type 2"},
		{"htn", "hypertension"},
	}
	for _, p := range pairs {
		score := scorer.Score(p[0], p[1])
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestScorer_EmptyInputs(t *testing.T) {
	scorer := createTestScorer()
	assert.Equal(t, 0.0, scorer.Score("", "diabetes"))
	assert.Equal(t, 0.0, scorer.Score("diabetes", ""))
	assert.Equal(t, 0.0, scorer.Score("", ""))
}

func TestScorer_TypoScoresHigh(t *testing.T) {
	scorer := createTestScorer()

	// One substitution, same Soundex code: the blend must clear a 0.6
	// threshold against both the bare word and the full display.
	assert.GreaterOrEqual(t, scorer.Score("diabetis", "diabetes"), 0.6)
	assert.GreaterOrEqual(t, scorer.Score("diabetis", "diabetes mellitus"), 0.6)

	// Unrelated terms must not.
	assert.Less(t, scorer.Score("diabetis", "aspirin"), 0.5)
}

func TestScorer_TokenReordering(t *testing.T) {
	scorer := createTestScorer()

	reordered := scorer.Score("mellitus diabetes", "diabetes mellitus")
	unrelated := scorer.Score("mellitus diabetes", "chronic kidney disease")
	assert.Greater(t, reordered, unrelated)
	assert.GreaterOrEqual(t, reordered, 0.5, "full token overlap dominates the blend")
}

func TestScorer_SubstringBonus(t *testing.T) {
	scorer := createTestScorer()

	with := scorer.Score("diabetes", "diabetes mellitus")
	without := scorer.Score("diabetez", "diabetes mellitus")
	assert.Greater(t, with, without)
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"diabetis", "diabetes", 1},
		{"same", "same", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, levenshtein([]rune(tt.a), []rune(tt.b)),
			"levenshtein(%q, %q)", tt.a, tt.b)
	}
}

func TestSoundex(t *testing.T) {
	tests := []struct {
		word     string
		expected string
	}{
		{"Robert", "R163"},
		{"Rupert", "R163"},
		{"diabetes", "D132"},
		{"diabetis", "D132"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, soundex(tt.word), "soundex(%q)", tt.word)
	}
}

func TestTokenOverlap(t *testing.T) {
	assert.Equal(t, 1.0, tokenOverlap("diabetes mellitus", "mellitus diabetes"))
	assert.Equal(t, 0.0, tokenOverlap("diabetes", "hypertension"))
	assert.InDelta(t, 1.0/3.0, tokenOverlap("diabetes mellitus", "diabetes insipidus"), 1e-9)
}
