package matching

import (
	"regexp"

	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/terminology"
)

// patternRule recognizes a clinical shorthand and names the expansions to
// resolve against the vocabulary stores. Confidence sits in [0.4, 0.6]
// proportional to how specific the shorthand is: multi-letter disease
// abbreviations are more specific than two-letter ones, dosage shorthand
// least of all.
type patternRule struct {
	pattern    *regexp.Regexp
	expansions []string
	confidence float64
}

// patternRules is the built-in rule set, derived from clinical
// abbreviation and dosing conventions. Rules match against the full
// normalized term.
var patternRules = []patternRule{
	// Disease abbreviations, most specific first.
	{regexp.MustCompile(`^t2dm$`), []string{"type 2 diabetes mellitus", "diabetes mellitus type 2"}, 0.60},
	{regexp.MustCompile(`^copd$`), []string{"chronic obstructive pulmonary disease"}, 0.60},
	{regexp.MustCompile(`^gerd$`), []string{"gastroesophageal reflux disease", "acid reflux"}, 0.60},
	{regexp.MustCompile(`^adhd$`), []string{"attention deficit hyperactivity disorder"}, 0.60},
	{regexp.MustCompile(`^htn$`), []string{"hypertension", "high blood pressure"}, 0.55},
	{regexp.MustCompile(`^chf$`), []string{"congestive heart failure", "heart failure"}, 0.55},
	{regexp.MustCompile(`^cad$`), []string{"coronary artery disease"}, 0.55},
	{regexp.MustCompile(`^cva$`), []string{"cerebrovascular accident", "stroke"}, 0.55},
	{regexp.MustCompile(`^uti$`), []string{"urinary tract infection"}, 0.55},
	{regexp.MustCompile(`^ckd$`), []string{"chronic kidney disease"}, 0.55},
	{regexp.MustCompile(`^hld$`), []string{"hyperlipidemia", "high cholesterol"}, 0.55},
	{regexp.MustCompile(`^bph$`), []string{"benign prostatic hyperplasia"}, 0.55},
	{regexp.MustCompile(`^dvt$`), []string{"deep vein thrombosis"}, 0.55},
	{regexp.MustCompile(`^sob$`), []string{"shortness of breath"}, 0.55},
	{regexp.MustCompile(`^ibd$`), []string{"inflammatory bowel disease"}, 0.55},
	{regexp.MustCompile(`^ibs$`), []string{"irritable bowel syndrome"}, 0.55},
	{regexp.MustCompile(`^mi$`), []string{"myocardial infarction", "heart attack"}, 0.50},
	{regexp.MustCompile(`^dm$`), []string{"diabetes mellitus"}, 0.50},
	{regexp.MustCompile(`^ra$`), []string{"rheumatoid arthritis"}, 0.50},
	{regexp.MustCompile(`^oa$`), []string{"osteoarthritis"}, 0.50},
	{regexp.MustCompile(`^pe$`), []string{"pulmonary embolism"}, 0.50},
	{regexp.MustCompile(`^bp$`), []string{"blood pressure"}, 0.50},
	// Lab shorthand.
	{regexp.MustCompile(`^hba1c$|^hb a1c$`), []string{"hemoglobin a1c", "glycated hemoglobin"}, 0.60},
	// Dosing frequency shorthand, least specific.
	{regexp.MustCompile(`^bid$`), []string{"twice daily"}, 0.45},
	{regexp.MustCompile(`^tid$`), []string{"three times daily"}, 0.45},
	{regexp.MustCompile(`^qid$`), []string{"four times daily"}, 0.45},
	{regexp.MustCompile(`^qd$`), []string{"once daily"}, 0.45},
	{regexp.MustCompile(`^prn$`), []string{"as needed"}, 0.40},
}

// patternExpansion is one recognized shorthand expansion to resolve.
type patternExpansion struct {
	term       string
	confidence float64
}

// expandPatterns returns the expansions whose rule matches the normalized
// term. Most terms match nothing.
func expandPatterns(normalized string) []patternExpansion {
	var out []patternExpansion
	for _, rule := range patternRules {
		if !rule.pattern.MatchString(normalized) {
			continue
		}
		for _, exp := range rule.expansions {
			out = append(out, patternExpansion{
				term:       terminology.NormalizeTerm(exp),
				confidence: rule.confidence,
			})
		}
	}
	return out
}
