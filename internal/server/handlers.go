package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/batch"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/config"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/errors"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/logger"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/matching"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/terminology"
)

// Handler owns the HTTP surface of the mapping service.
type Handler struct {
	pipeline     *matching.Pipeline
	orchestrator *batch.Orchestrator
	pingers      map[string]terminology.Pinger
	cfg          *config.Config
	logger       logger.Logger
}

func NewHandler(pipeline *matching.Pipeline, orchestrator *batch.Orchestrator, pingers map[string]terminology.Pinger, cfg *config.Config, log logger.Logger) *Handler {
	return &Handler{
		pipeline:     pipeline,
		orchestrator: orchestrator,
		pingers:      pingers,
		cfg:          cfg,
		logger:       log.WithFields(map[string]interface{}{"component": "http-handler"}),
	}
}

// ==========================
// Request / Response Shapes
// ==========================

type mapRequest struct {
	Term           string   `json:"term"`
	Systems        []string `json:"systems"`
	Context        string   `json:"context"`
	FuzzyThreshold *float64 `json:"fuzzy_threshold"`
	MaxResults     *int     `json:"max_results"`
}

type batchRequest struct {
	Terms          []string `json:"terms"`
	Systems        []string `json:"systems"`
	Context        string   `json:"context"`
	FuzzyThreshold *float64 `json:"fuzzy_threshold"`
	MaxResults     *int     `json:"max_results"`
}

type mappingEntry struct {
	Code       string  `json:"code"`
	Display    string  `json:"display"`
	Confidence float64 `json:"confidence"`
	MatchType  string  `json:"match_type"`
}

type mapResponse struct {
	Term     string                       `json:"term"`
	Results  map[string][]mappingEntry    `json:"results"`
	Failures []matching.VocabularyFailure `json:"failures,omitempty"`
}

type batchAccepted struct {
	JobID string `json:"job_id"`
}

type batchStatusResponse struct {
	JobID          string     `json:"job_id"`
	Status         string     `json:"status"`
	TotalTerms     int        `json:"total_terms"`
	ProcessedTerms int        `json:"processed_terms"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	FaultReason    string     `json:"fault_reason,omitempty"`
}

type batchTermResult struct {
	Term     string                    `json:"term"`
	Mappings map[string][]mappingEntry `json:"mappings,omitempty"`
	Error    string                    `json:"error,omitempty"`
}

type batchResultResponse struct {
	JobID   string            `json:"job_id"`
	Status  string            `json:"status"`
	Results []batchTermResult `json:"results"`
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details,omitempty"`
	} `json:"error"`
}

// groupBySystem converts the pipeline's flat ranked list into the per
// system response shape, preserving rank order within each system.
func groupBySystem(results []matching.MappingResult) map[string][]mappingEntry {
	grouped := make(map[string][]mappingEntry)
	for _, r := range results {
		system := string(r.Vocabulary)
		grouped[system] = append(grouped[system], mappingEntry{
			Code:       r.Code,
			Display:    r.Display,
			Confidence: r.Confidence,
			MatchType:  r.MatchType.String(),
		})
	}
	return grouped
}

// ==========================
// Single Term Mapping
// ==========================

// MapTerm handles POST /api/v1/map.
func (h *Handler) MapTerm(c echo.Context) error {
	var raw map[string]interface{}
	if err := json.NewDecoder(c.Request().Body).Decode(&raw); err != nil {
		return h.writeError(c, errors.NewInvalidParameterError("request body is not valid JSON"))
	}
	if err := validateAgainstSchema(raw, mapRequestSchema); err != nil {
		return h.writeError(c, err)
	}

	var req mapRequest
	if err := rebind(raw, &req); err != nil {
		return h.writeError(c, errors.NewInvalidParameterError(err.Error()))
	}

	systems, err := terminology.ParseSystems(req.Systems)
	if err != nil {
		return h.writeError(c, err)
	}

	resp, err := h.pipeline.MapTerm(c.Request().Context(), matching.MapRequest{
		Term:       req.Term,
		Context:    req.Context,
		Systems:    systems,
		Threshold:  h.threshold(req.FuzzyThreshold),
		MaxResults: h.maxResults(req.MaxResults),
	})
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusOK, mapResponse{
		Term:     resp.Term,
		Results:  groupBySystem(resp.Results),
		Failures: resp.Failures,
	})
}

// ==========================
// Batch Endpoints
// ==========================

// SubmitBatch handles POST /api/v1/batch.
func (h *Handler) SubmitBatch(c echo.Context) error {
	var raw map[string]interface{}
	if err := json.NewDecoder(c.Request().Body).Decode(&raw); err != nil {
		return h.writeError(c, errors.NewInvalidParameterError("request body is not valid JSON"))
	}
	if err := validateAgainstSchema(raw, batchRequestSchema); err != nil {
		return h.writeError(c, err)
	}

	var req batchRequest
	if err := rebind(raw, &req); err != nil {
		return h.writeError(c, errors.NewInvalidParameterError(err.Error()))
	}

	systems, err := terminology.ParseSystems(req.Systems)
	if err != nil {
		return h.writeError(c, err)
	}

	job, err := h.orchestrator.Submit(c.Request().Context(), batch.Request{
		Terms:      req.Terms,
		Context:    req.Context,
		Systems:    systems,
		Threshold:  h.threshold(req.FuzzyThreshold),
		MaxResults: h.maxResults(req.MaxResults),
	})
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusAccepted, batchAccepted{JobID: job.ID})
}

// BatchStatus handles GET /api/v1/batch/status/:job_id.
func (h *Handler) BatchStatus(c echo.Context) error {
	job, err := h.orchestrator.Status(c.Request().Context(), c.Param("job_id"))
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusOK, batchStatusResponse{
		JobID:          job.ID,
		Status:         string(job.Status),
		TotalTerms:     job.TotalTerms,
		ProcessedTerms: job.ProcessedTerms,
		CreatedAt:      job.CreatedAt,
		CompletedAt:    job.CompletedAt,
		FaultReason:    job.FaultReason,
	})
}

// BatchResult handles GET /api/v1/batch/result/:job_id.
func (h *Handler) BatchResult(c echo.Context) error {
	job, err := h.orchestrator.Result(c.Request().Context(), c.Param("job_id"))
	if err != nil {
		return h.writeError(c, err)
	}

	results := make([]batchTermResult, len(job.Results))
	for i, r := range job.Results {
		entry := batchTermResult{Term: r.Term, Error: r.Error}
		if r.Response != nil {
			entry.Mappings = groupBySystem(r.Response.Results)
		}
		results[i] = entry
	}

	return c.JSON(http.StatusOK, batchResultResponse{
		JobID:   job.ID,
		Status:  string(job.Status),
		Results: results,
	})
}

// CancelBatch handles DELETE /api/v1/batch/:job_id.
func (h *Handler) CancelBatch(c echo.Context) error {
	job, err := h.orchestrator.Cancel(c.Request().Context(), c.Param("job_id"))
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusOK, batchStatusResponse{
		JobID:          job.ID,
		Status:         string(job.Status),
		TotalTerms:     job.TotalTerms,
		ProcessedTerms: job.ProcessedTerms,
		CreatedAt:      job.CreatedAt,
		CompletedAt:    job.CompletedAt,
	})
}

// ==========================
// Health
// ==========================

// Healthz handles GET /healthz. Each configured backend is pinged with a
// short deadline; the endpoint degrades to 503 when any backend is down.
func (h *Handler) Healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.pingers))
	for name, pinger := range h.pingers {
		if err := pinger.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]interface{}{
		"status": "ok",
		"checks": checks,
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	return c.JSON(status, body)
}

// ==========================
// Helpers
// ==========================

// threshold keeps an omitted fuzzy_threshold distinguishable from an
// explicit one so the pipeline can fall back to per-vocabulary defaults.
func (h *Handler) threshold(v *float64) float64 {
	if v != nil {
		return *v
	}
	return matching.ThresholdUnset
}

func (h *Handler) maxResults(v *int) int {
	if v != nil {
		return *v
	}
	return h.cfg.Matching.DefaultMaxResults
}

// rebind round-trips the validated raw body into a typed request struct.
func rebind(raw map[string]interface{}, out interface{}) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// writeError renders a StandardError with its mapped HTTP status.
func (h *Handler) writeError(c echo.Context, err error) error {
	stdErr := errors.AsStandardError(err)
	if stdErr == nil {
		stdErr = errors.NewOrchestratorFaultError(err)
	}

	status := errors.HTTPStatus(stdErr.Code)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", map[string]interface{}{
			"code":   string(stdErr.Code),
			"status": status,
			"error":  stdErr.Details,
		})
	}

	var body errorBody
	body.Error.Code = string(stdErr.Code)
	body.Error.Message = stdErr.Message
	body.Error.Details = stdErr.Details
	return c.JSON(status, body)
}
