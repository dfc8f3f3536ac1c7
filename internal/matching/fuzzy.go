package matching

import (
	"strings"

	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/config"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/terminology"
)

// Scorer blends several independent string similarity signals into one
// normalized score in [0,1]. Both inputs are expected in normalized form.
// Scoring is pure: no I/O, no randomness, symmetric in its arguments.
type Scorer struct {
	editWeight      float64
	phoneticWeight  float64
	tokenWeight     float64
	substringWeight float64
}

// NewScorer creates a scorer from the configured blend weights. The config
// loader guarantees the weights sum to 1.0.
func NewScorer(weights config.WeightsConfig) *Scorer {
	return &Scorer{
		editWeight:      weights.EditDistance,
		phoneticWeight:  weights.Phonetic,
		tokenWeight:     weights.TokenOverlap,
		substringWeight: weights.Substring,
	}
}

// Score computes the blended similarity between two normalized strings.
func (s *Scorer) Score(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	score := s.editWeight*editSimilarity(a, b) +
		s.phoneticWeight*phoneticSimilarity(a, b) +
		s.tokenWeight*tokenOverlap(a, b)

	if isSubstring(a, b) {
		score += s.substringWeight
	}

	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// editSimilarity is the better of the whole-string similarity and the best
// token-pair similarity, so a misspelled single word still scores well
// against a multi-word display ("diabetis" vs "diabetes mellitus").
func editSimilarity(a, b string) float64 {
	best := stringSimilarity(a, b)
	for _, ta := range terminology.Tokenize(a) {
		for _, tb := range terminology.Tokenize(b) {
			if s := stringSimilarity(ta, tb); s > best {
				best = s
			}
		}
	}
	return best
}

// stringSimilarity is 1 - levenshtein(a,b)/max(len(a),len(b)), computed
// over runes.
func stringSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 0
	}
	return 1 - float64(levenshtein(ra, rb))/float64(maxLen)
}

// levenshtein computes edit distance with the two-row dynamic program.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// phoneticSimilarity compares Soundex codes of the two strings: 1.0 when
// they encode identically, 0.0 otherwise. Multi-word strings compare the
// codes of their first tokens, which is where the phonetic signal lives
// for clinical terms ("diabetis" vs "diabetes").
func phoneticSimilarity(a, b string) float64 {
	if soundex(firstToken(a)) == soundex(firstToken(b)) {
		return 1
	}
	return 0
}

func firstToken(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}

// soundex implements the classic four-character American Soundex code.
func soundex(word string) string {
	word = strings.ToUpper(word)

	var letters []byte
	for i := 0; i < len(word); i++ {
		if word[i] >= 'A' && word[i] <= 'Z' {
			letters = append(letters, word[i])
		}
	}
	if len(letters) == 0 {
		return ""
	}

	code := []byte{letters[0]}
	lastDigit := soundexDigit(letters[0])

	for _, c := range letters[1:] {
		d := soundexDigit(c)
		if d == 0 {
			// Vowels and h/w/y reset adjacency but emit nothing.
			lastDigit = 0
			continue
		}
		if d != lastDigit {
			code = append(code, '0'+d)
			if len(code) == 4 {
				break
			}
		}
		lastDigit = d
	}

	for len(code) < 4 {
		code = append(code, '0')
	}
	return string(code)
}

func soundexDigit(c byte) byte {
	switch c {
	case 'B', 'F', 'P', 'V':
		return 1
	case 'C', 'G', 'J', 'K', 'Q', 'S', 'X', 'Z':
		return 2
	case 'D', 'T':
		return 3
	case 'L':
		return 4
	case 'M', 'N':
		return 5
	case 'R':
		return 6
	}
	return 0
}

// tokenMatchThreshold is the per-token edit similarity above which two
// tokens count as the same word for overlap purposes.
const tokenMatchThreshold = 0.8

// tokenOverlap is a Jaccard similarity over the two word sets where
// tokens match when nearly identical, so single-character typos do not
// zero out the overlap signal.
func tokenOverlap(a, b string) float64 {
	setA := terminology.TokenSet(a)
	setB := terminology.TokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	// min of the two directed match counts keeps the measure symmetric
	// when several tokens on one side collapse onto one on the other.
	intersection := matchedTokens(setA, setB)
	if fromB := matchedTokens(setB, setA); fromB < intersection {
		intersection = fromB
	}
	union := len(setA) + len(setB) - intersection

	return float64(intersection) / float64(union)
}

func matchedTokens(from, to map[string]bool) int {
	matched := 0
	for ta := range from {
		if to[ta] {
			matched++
			continue
		}
		for tb := range to {
			if stringSimilarity(ta, tb) >= tokenMatchThreshold {
				matched++
				break
			}
		}
	}
	return matched
}

// isSubstring reports whether the shorter string occurs contiguously in
// the longer one.
func isSubstring(a, b string) bool {
	if len(a) <= len(b) {
		return strings.Contains(b, a)
	}
	return strings.Contains(a, b)
}
