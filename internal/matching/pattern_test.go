package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPatterns(t *testing.T) {
	tests := []struct {
		name          string
		term          string
		expectTerms   []string
		expectMinConf float64
		expectMaxConf float64
	}{
		{
			name:          "disease abbreviation",
			term:          "htn",
			expectTerms:   []string{"hypertension", "high blood pressure"},
			expectMinConf: 0.55,
			expectMaxConf: 0.55,
		},
		{
			name:          "two letter abbreviation scores lower",
			term:          "mi",
			expectTerms:   []string{"myocardial infarction", "heart attack"},
			expectMinConf: 0.50,
			expectMaxConf: 0.50,
		},
		{
			name:          "dosing shorthand",
			term:          "bid",
			expectTerms:   []string{"twice daily"},
			expectMinConf: 0.45,
			expectMaxConf: 0.45,
		},
		{
			name:          "lab shorthand with space folded",
			term:          "hb a1c",
			expectTerms:   []string{"hemoglobin a1c", "glycated hemoglobin"},
			expectMinConf: 0.60,
			expectMaxConf: 0.60,
		},
		{
			name: "ordinary term matches nothing",
			term: "diabetes mellitus",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expansions := expandPatterns(tt.term)
			if len(tt.expectTerms) == 0 {
				assert.Empty(t, expansions)
				return
			}

			require.Len(t, expansions, len(tt.expectTerms))
			for i, exp := range expansions {
				assert.Equal(t, tt.expectTerms[i], exp.term)
				assert.GreaterOrEqual(t, exp.confidence, tt.expectMinConf)
				assert.LessOrEqual(t, exp.confidence, tt.expectMaxConf)
			}
		})
	}
}

func TestPatternConfidenceBand(t *testing.T) {
	for _, rule := range patternRules {
		assert.GreaterOrEqual(t, rule.confidence, 0.4, "rule %s", rule.pattern)
		assert.LessOrEqual(t, rule.confidence, 0.6, "rule %s", rule.pattern)
	}
}
