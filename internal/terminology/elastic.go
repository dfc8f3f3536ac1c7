package terminology

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	stderrors "github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/errors"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/logger"
)

var (
	ErrSearchQueryFailed = errors.New("search query failed")
	ErrSearchTimeout     = errors.New("search timed out")
)

// ElasticStore serves concept lookups from per-vocabulary Elasticsearch
// indexes named {prefix}_{vocabulary}. Documents carry normalized_term,
// code, display and entity_type fields; synonym documents additionally
// carry a synonym flag.
type ElasticStore struct {
	client      *elasticsearch.Client
	indexPrefix string
	timeout     time.Duration
	logger      logger.Logger
}

func NewElasticStore(client *elasticsearch.Client, indexPrefix string, timeout time.Duration, log logger.Logger) *ElasticStore {
	if indexPrefix == "" {
		indexPrefix = "terminology"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ElasticStore{
		client:      client,
		indexPrefix: indexPrefix,
		timeout:     timeout,
		logger:      log,
	}
}

func (s *ElasticStore) indexFor(vocab Vocabulary) string {
	return fmt.Sprintf("%s_%s", s.indexPrefix, string(vocab))
}

// Lookup returns concepts whose normalized_term matches exactly.
func (s *ElasticStore) Lookup(ctx context.Context, vocab Vocabulary, normalized string) ([]Concept, error) {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"normalized_term": normalized},
					},
				},
				"must_not": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"synonym": true},
					},
				},
			},
		},
	}
	return s.search(ctx, vocab, query, 25)
}

// Synonyms returns concepts reachable through synonym documents for the
// normalized term.
func (s *ElasticStore) Synonyms(ctx context.Context, vocab Vocabulary, normalized string) ([]Concept, error) {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"normalized_term": normalized},
					},
					map[string]interface{}{
						"term": map[string]interface{}{"synonym": true},
					},
				},
			},
		},
	}
	return s.search(ctx, vocab, query, 25)
}

// Candidates returns up to budget concepts that loosely resemble the
// normalized term, using a prefix clause on the first character and a
// fuzzy match as fallback. Callers score the results themselves.
func (s *ElasticStore) Candidates(ctx context.Context, vocab Vocabulary, normalized string, budget int) ([]Concept, error) {
	if budget <= 0 {
		return nil, nil
	}

	shouldClauses := []interface{}{
		map[string]interface{}{
			"match": map[string]interface{}{
				"normalized_term": map[string]interface{}{
					"query":     normalized,
					"fuzziness": "AUTO",
				},
			},
		},
	}
	if normalized != "" {
		shouldClauses = append(shouldClauses, map[string]interface{}{
			"prefix": map[string]interface{}{
				"normalized_term": string(normalized[0]),
			},
		})
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should":               shouldClauses,
				"minimum_should_match": 1,
			},
		},
	}
	return s.search(ctx, vocab, query, budget)
}

// Ping verifies the cluster is reachable.
func (s *ElasticStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.String())
	}
	return nil
}

func (s *ElasticStore) search(ctx context.Context, vocab Vocabulary, query map[string]interface{}, size int) ([]Concept, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}

	req := esapi.SearchRequest{
		Index: []string{s.indexFor(vocab)},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, stderrors.NewStoreTimeoutError(string(vocab))
		}
		return nil, stderrors.NewVocabularyUnavailableError(string(vocab), err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, stderrors.NewVocabularyUnavailableError(string(vocab),
			fmt.Errorf("%w: %s", ErrSearchQueryFailed, res.String()))
	}

	var r struct {
		Hits struct {
			Hits []struct {
				Source struct {
					Code       string `json:"code"`
					Display    string `json:"display"`
					EntityType string `json:"entity_type"`
					Normalized string `json:"normalized_term"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}

	concepts := make([]Concept, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		concepts = append(concepts, Concept{
			Vocabulary: vocab,
			Code:       hit.Source.Code,
			Display:    hit.Source.Display,
			EntityType: hit.Source.EntityType,
		})
	}
	return concepts, nil
}
