// Package batch runs many term mappings as one asynchronous job with
// observable progress, per-term failure isolation and cooperative
// cancellation.
package batch

import (
	"time"

	"github.com/google/uuid"

	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/matching"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/terminology"
)

// Status is the lifecycle state of a batch job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// TermResult is the outcome slot for one term, keyed by its position in
// the submitted list. Exactly one of Response and Error is set.
type TermResult struct {
	Term     string                    `json:"term"`
	Response *matching.MappingResponse `json:"response,omitempty"`
	Error    string                    `json:"error,omitempty"`
}

// Request carries the mapping parameters shared by every term in a job.
type Request struct {
	Terms      []string                 `json:"terms"`
	Context    string                   `json:"context,omitempty"`
	Systems    []terminology.Vocabulary `json:"systems"`
	Threshold  float64                  `json:"threshold"`
	MaxResults int                      `json:"max_results"`
}

// Job is one batch mapping job. Results never shrinks and is sized to the
// term count at creation; ProcessedTerms is monotone non-decreasing and
// equals TotalTerms exactly when the job is terminal.
type Job struct {
	ID             string       `json:"id"`
	Status         Status       `json:"status"`
	Request        Request      `json:"request"`
	TotalTerms     int          `json:"total_terms"`
	ProcessedTerms int          `json:"processed_terms"`
	Results        []TermResult `json:"results"`
	FaultReason    string       `json:"fault_reason,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
}

// NewJob creates a pending job for the request.
func NewJob(req Request) *Job {
	results := make([]TermResult, len(req.Terms))
	for i, term := range req.Terms {
		results[i] = TermResult{Term: term}
	}
	return &Job{
		ID:         uuid.NewString(),
		Status:     StatusPending,
		Request:    req,
		TotalTerms: len(req.Terms),
		Results:    results,
		CreatedAt:  time.Now().UTC(),
	}
}

// Clone returns a deep enough copy for safe hand-off across goroutines.
func (j *Job) Clone() *Job {
	copied := *j
	copied.Results = append([]TermResult(nil), j.Results...)
	if j.CompletedAt != nil {
		at := *j.CompletedAt
		copied.CompletedAt = &at
	}
	return &copied
}
