package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/batch"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/config"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/logger"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/matching"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/terminology"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *config.Config {
	return &config.Config{
		Matching: config.MatchingConfig{
			DefaultThreshold:  0.7,
			DefaultMaxResults: 5,
			CandidateBudget:   200,
			Weights: config.WeightsConfig{
				EditDistance: 0.35,
				Phonetic:     0.20,
				TokenOverlap: 0.30,
				Substring:    0.15,
			},
		},
		Batch: config.BatchConfig{Workers: 2, MaxTerms: 100, Retention: 3600000},
		Vocabularies: map[string]config.VocabularyConfig{
			"snomed": {Enabled: true},
			"loinc":  {Enabled: true},
			"rxnorm": {Enabled: true},
		},
	}
}

func createTestHandler(t *testing.T) (*Handler, *batch.Orchestrator) {
	store := terminology.NewMemoryStore()
	hypertension := terminology.Concept{Vocabulary: terminology.SNOMED, Code: "38341003", Display: "Hypertension", EntityType: "disorder"}
	store.AddConcept(hypertension)
	store.AddConcept(terminology.Concept{Vocabulary: terminology.SNOMED, Code: "73211009", Display: "Diabetes mellitus", EntityType: "disorder"})
	store.AddConcept(terminology.Concept{Vocabulary: terminology.RXNORM, Code: "1191", Display: "Aspirin", EntityType: "medication"})
	store.AddSynonym(terminology.SNOMED, "htn", hypertension)

	cfg := createTestConfig()
	log := logger.NewZapAdapter(zaptest.NewLogger(t))

	pipeline := matching.NewPipeline(store, matching.NewScorer(cfg.Matching.Weights), matching.NewContextRanker(nil), cfg, log)
	orch := batch.NewOrchestrator(pipeline, batch.NewMemoryJobStore(), cfg.Batch, log)

	return NewHandler(pipeline, orch, nil, cfg, log), orch
}

func performRequest(t *testing.T, handler echo.HandlerFunc, method, path, body string, pathParams map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	for name, value := range pathParams {
		c.SetParamNames(name)
		c.SetParamValues(value)
	}

	require.NoError(t, handler(c))
	return rec
}

func waitForCompletion(t *testing.T, orch *batch.Orchestrator, jobID string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		job, err := orch.Status(context.Background(), jobID)
		require.NoError(t, err)
		if job.Status.Terminal() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("batch job did not finish in time")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// ==========================
// Map Endpoint Tests
// ==========================

func TestMapTerm_Success(t *testing.T) {
	handler, _ := createTestHandler(t)

	rec := performRequest(t, handler.MapTerm, http.MethodPost, "/api/v1/map",
		`{"term": "Hypertension", "systems": ["snomed"]}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp mapResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Hypertension", resp.Term)

	snomed := resp.Results["snomed"]
	require.NotEmpty(t, snomed)
	assert.Equal(t, "38341003", snomed[0].Code)
	assert.Equal(t, 1.0, snomed[0].Confidence)
	assert.Equal(t, "exact", snomed[0].MatchType)
}

func TestMapTerm_SynonymViaAbbreviation(t *testing.T) {
	handler, _ := createTestHandler(t)

	rec := performRequest(t, handler.MapTerm, http.MethodPost, "/api/v1/map",
		`{"term": "HTN", "systems": ["snomed"]}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp mapResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	snomed := resp.Results["snomed"]
	require.NotEmpty(t, snomed)
	assert.Equal(t, "Hypertension", snomed[0].Display)
	assert.Equal(t, 0.95, snomed[0].Confidence)
	assert.Equal(t, "synonym", snomed[0].MatchType)
}

func TestMapTerm_ValidationErrors(t *testing.T) {
	handler, _ := createTestHandler(t)

	tests := []struct {
		name       string
		body       string
		expectCode string
	}{
		{
			name:       "missing term",
			body:       `{"systems": ["snomed"]}`,
			expectCode: "INVALID_PARAMETER",
		},
		{
			name:       "blank term",
			body:       `{"term": "   "}`,
			expectCode: "EMPTY_TERM",
		},
		{
			name:       "threshold out of range",
			body:       `{"term": "diabetes", "fuzzy_threshold": 2.5}`,
			expectCode: "INVALID_PARAMETER",
		},
		{
			name:       "unknown system rejected by schema",
			body:       `{"term": "diabetes", "systems": ["icd10"]}`,
			expectCode: "INVALID_PARAMETER",
		},
		{
			name:       "malformed json",
			body:       `{"term": `,
			expectCode: "INVALID_PARAMETER",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := performRequest(t, handler.MapTerm, http.MethodPost, "/api/v1/map", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.expectCode, body.Error.Code)
		})
	}
}

// ==========================
// Batch Endpoint Tests
// ==========================

func TestBatchLifecycle(t *testing.T) {
	handler, orch := createTestHandler(t)

	rec := performRequest(t, handler.SubmitBatch, http.MethodPost, "/api/v1/batch",
		`{"terms": ["diabetes", "qqzzxx_nonsense", "aspirin"], "systems": ["all"]}`, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var accepted batchAccepted
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	require.NotEmpty(t, accepted.JobID)

	waitForCompletion(t, orch, accepted.JobID)

	// Status endpoint.
	rec = performRequest(t, handler.BatchStatus, http.MethodGet, "/api/v1/batch/status/"+accepted.JobID,
		"", map[string]string{"job_id": accepted.JobID})
	require.Equal(t, http.StatusOK, rec.Code)

	var status batchStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "completed", status.Status)
	assert.Equal(t, 3, status.TotalTerms)
	assert.Equal(t, 3, status.ProcessedTerms)
	require.NotNil(t, status.CompletedAt)

	// Result endpoint.
	rec = performRequest(t, handler.BatchResult, http.MethodGet, "/api/v1/batch/result/"+accepted.JobID,
		"", map[string]string{"job_id": accepted.JobID})
	require.Equal(t, http.StatusOK, rec.Code)

	var result batchResultResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Results, 3)

	assert.Equal(t, "diabetes", result.Results[0].Term)
	assert.NotEmpty(t, result.Results[0].Mappings["snomed"])

	assert.Equal(t, "qqzzxx_nonsense", result.Results[1].Term)
	assert.Empty(t, result.Results[1].Mappings["snomed"], "nonsense term maps to nothing")

	assert.NotEmpty(t, result.Results[2].Mappings["rxnorm"])
}

func TestBatchResult_NotCompleted(t *testing.T) {
	handler, orch := createTestHandler(t)

	job, err := orch.Submit(context.Background(), batch.Request{
		Terms:      []string{"diabetes"},
		Systems:    []terminology.Vocabulary{terminology.SNOMED},
		Threshold:  0.7,
		MaxResults: 5,
	})
	require.NoError(t, err)

	rec := performRequest(t, handler.BatchResult, http.MethodGet, "/api/v1/batch/result/"+job.ID,
		"", map[string]string{"job_id": job.ID})

	// The single-term job may already be done; only a still-running job
	// must yield 409.
	if rec.Code != http.StatusOK {
		assert.Equal(t, http.StatusConflict, rec.Code)

		var body errorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "JOB_NOT_COMPLETED", body.Error.Code)
	}

	waitForCompletion(t, orch, job.ID)
}

func TestBatchStatus_UnknownJob(t *testing.T) {
	handler, _ := createTestHandler(t)

	rec := performRequest(t, handler.BatchStatus, http.MethodGet, "/api/v1/batch/status/nope",
		"", map[string]string{"job_id": "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "JOB_NOT_FOUND", body.Error.Code)
}

func TestSubmitBatch_EmptyTermsRejected(t *testing.T) {
	handler, _ := createTestHandler(t)

	rec := performRequest(t, handler.SubmitBatch, http.MethodPost, "/api/v1/batch",
		`{"terms": []}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ==========================
// Health Endpoint Tests
// ==========================

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

func TestHealthz(t *testing.T) {
	handler, _ := createTestHandler(t)

	t.Run("all backends healthy", func(t *testing.T) {
		handler.pingers = map[string]terminology.Pinger{"postgres": stubPinger{}}

		rec := performRequest(t, handler.Healthz, http.MethodGet, "/healthz", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("degraded when a backend is down", func(t *testing.T) {
		handler.pingers = map[string]terminology.Pinger{
			"postgres": stubPinger{},
			"redis":    stubPinger{err: context.DeadlineExceeded},
		}

		rec := performRequest(t, handler.Healthz, http.MethodGet, "/healthz", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "degraded", body["status"])
	})
}

func TestCancelBatch(t *testing.T) {
	handler, orch := createTestHandler(t)

	terms := make([]string, 50)
	for i := range terms {
		terms[i] = "diabetes"
	}
	job, err := orch.Submit(context.Background(), batch.Request{
		Terms:      terms,
		Systems:    []terminology.Vocabulary{terminology.SNOMED},
		Threshold:  0.7,
		MaxResults: 5,
	})
	require.NoError(t, err)

	rec := performRequest(t, handler.CancelBatch, http.MethodDelete, "/api/v1/batch/"+job.ID,
		"", map[string]string{"job_id": job.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	waitForCompletion(t, orch, job.ID)

	final, err := orch.Status(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Contains(t, []batch.Status{batch.StatusCancelled, batch.StatusCompleted}, final.Status)
}
