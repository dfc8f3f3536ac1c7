package terminology

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/errors"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/logger"
)

type capturedSearch struct {
	path string
	body map[string]interface{}
}

func createElasticStore(t *testing.T, handler http.HandlerFunc) *ElasticStore {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	return NewElasticStore(client, "terminology", 5*time.Second, logger.NewZapAdapter(zaptest.NewLogger(t)))
}

func searchResponse(t *testing.T, w http.ResponseWriter, sources []map[string]interface{}) {
	hits := make([]map[string]interface{}, 0, len(sources))
	for _, src := range sources {
		hits = append(hits, map[string]interface{}{"_source": src})
	}
	resp := map[string]interface{}{
		"hits": map[string]interface{}{
			"total": map[string]interface{}{"value": len(hits)},
			"hits":  hits,
		},
	}
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(resp))
}

func TestElasticStore_Lookup(t *testing.T) {
	var captured capturedSearch

	store := createElasticStore(t, func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &captured.body)

		searchResponse(t, w, []map[string]interface{}{
			{"code": "38341003", "display": "Hypertension", "entity_type": "disorder", "normalized_term": "hypertension"},
		})
	})

	concepts, err := store.Lookup(context.Background(), SNOMED, "hypertension")
	require.NoError(t, err)
	require.Len(t, concepts, 1)
	assert.Equal(t, SNOMED, concepts[0].Vocabulary)
	assert.Equal(t, "38341003", concepts[0].Code)
	assert.Equal(t, "/terminology_snomed/_search", captured.path)
	assert.Contains(t, captured.body, "query")
}

func TestElasticStore_Candidates(t *testing.T) {
	store := createElasticStore(t, func(w http.ResponseWriter, r *http.Request) {
		searchResponse(t, w, []map[string]interface{}{
			{"code": "73211009", "display": "Diabetes mellitus", "entity_type": "disorder"},
			{"code": "46635009", "display": "Diabetes mellitus type 1", "entity_type": "disorder"},
		})
	})

	concepts, err := store.Candidates(context.Background(), SNOMED, "diabetis", 200)
	require.NoError(t, err)
	assert.Len(t, concepts, 2)
}

func TestElasticStore_Candidates_ZeroBudget(t *testing.T) {
	store := createElasticStore(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no search expected for a zero budget")
	})

	concepts, err := store.Candidates(context.Background(), SNOMED, "diabetis", 0)
	require.NoError(t, err)
	assert.Nil(t, concepts)
}

func TestElasticStore_SearchError(t *testing.T) {
	store := createElasticStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"type":"search_phase_execution_exception"}}`))
	})

	_, err := store.Lookup(context.Background(), LOINC, "glucose")
	require.Error(t, err)

	stdErr := errors.AsStandardError(err)
	require.NotNil(t, stdErr)
	assert.Equal(t, errors.ErrCodeVocabularyUnavailable, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}
