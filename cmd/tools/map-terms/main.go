// cmd/tools/map-terms/main.go
//
// Maps free-text medical terms against a seed vocabulary file and prints
// the ranked candidates as JSON. Terms come from arguments, or from stdin
// when no arguments are given (one term per line).
//
// Usage:
//
//	map-terms -seed configs/seed_concepts.json "diabetis" "HTN"
//	cat terms.txt | map-terms -seed configs/seed_concepts.json -systems snomed,loinc
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/config"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/logger"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/matching"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/terminology"
)

func scanLines(r io.Reader) []string {
	var terms []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			terms = append(terms, line)
		}
	}
	return terms
}

type termOutput struct {
	Term     string                       `json:"term"`
	Results  []matching.MappingResult     `json:"results"`
	Failures []matching.VocabularyFailure `json:"failures,omitempty"`
	Error    string                       `json:"error,omitempty"`
}

func main() {
	seedPath := flag.String("seed", "configs/seed_concepts.json", "Path to the seed vocabulary JSON file")
	termsFile := flag.String("terms-file", "", "File with one term per line (alternative to arguments)")
	systemsFlag := flag.String("systems", "all", "Comma-separated vocabularies (snomed,loinc,rxnorm or all)")
	threshold := flag.Float64("threshold", 0.7, "Minimum fuzzy confidence in [0,1]")
	maxResults := flag.Int("max-results", 5, "Maximum candidates per vocabulary")
	termContext := flag.String("context", "", "Optional clinical context hint")
	pretty := flag.Bool("pretty", false, "Indent JSON output")
	flag.Parse()

	terms := flag.Args()
	if *termsFile != "" {
		f, err := os.Open(*termsFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening terms file: %v\n", err)
			os.Exit(1)
		}
		terms = append(terms, scanLines(f)...)
		f.Close()
	}
	if len(terms) == 0 {
		terms = scanLines(os.Stdin)
	}
	if len(terms) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no terms given (pass as arguments or via stdin)")
		flag.Usage()
		os.Exit(1)
	}

	systems, err := terminology.ParseSystems(strings.Split(*systemsFlag, ","))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	store := terminology.NewMemoryStore()
	if err := store.LoadFile(*seedPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading seed file: %v\n", err)
		os.Exit(1)
	}

	cfg := &config.Config{}
	if loaded, err := config.Load(); err == nil {
		cfg = loaded
	} else {
		cfg.Matching = config.MatchingConfig{
			DefaultThreshold:  0.7,
			DefaultMaxResults: 5,
			CandidateBudget:   200,
			Weights: config.WeightsConfig{
				EditDistance: 0.35,
				Phonetic:     0.20,
				TokenOverlap: 0.30,
				Substring:    0.15,
			},
		}
		cfg.Vocabularies = map[string]config.VocabularyConfig{
			"snomed": {Enabled: true, Threshold: 0.7},
			"loinc":  {Enabled: true, Threshold: 0.7},
			"rxnorm": {Enabled: true, Threshold: 0.7},
		}
	}

	log := logger.NewZapAdapter(logger.New("error", "console"))
	pipeline := matching.NewPipeline(store,
		matching.NewScorer(cfg.Matching.Weights),
		matching.NewContextRanker(nil),
		cfg, log)

	ctx := context.Background()
	outputs := make([]termOutput, 0, len(terms))
	for _, term := range terms {
		resp, err := pipeline.MapTerm(ctx, matching.MapRequest{
			Term:       term,
			Context:    *termContext,
			Systems:    systems,
			Threshold:  *threshold,
			MaxResults: *maxResults,
		})
		if err != nil {
			outputs = append(outputs, termOutput{Term: term, Error: err.Error()})
			continue
		}
		outputs = append(outputs, termOutput{
			Term:     term,
			Results:  resp.Results,
			Failures: resp.Failures,
		})
	}

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(outputs); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
		os.Exit(1)
	}
}
