// Package errors provides standardized error handling for the mapping service.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidParameter  ErrorCode = "INVALID_PARAMETER"
	ErrCodeEmptyTerm         ErrorCode = "EMPTY_TERM"
	ErrCodeInvalidVocabulary ErrorCode = "INVALID_VOCABULARY"

	ErrCodeVocabularyUnavailable ErrorCode = "VOCABULARY_UNAVAILABLE"
	ErrCodeStoreTimeout          ErrorCode = "STORE_TIMEOUT"

	ErrCodeTermMappingFailed ErrorCode = "TERM_MAPPING_FAILED"
	ErrCodeOrchestratorFault ErrorCode = "ORCHESTRATOR_FAULT"

	ErrCodeJobNotFound     ErrorCode = "JOB_NOT_FOUND"
	ErrCodeJobNotCompleted ErrorCode = "JOB_NOT_COMPLETED"
	ErrCodeBatchTooLarge   ErrorCode = "BATCH_TOO_LARGE"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewInvalidParameterError creates a non-retryable caller error.
func NewInvalidParameterError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidParameter,
		Message:   "Invalid request parameter",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmptyTermError creates a non-retryable caller error for blank input terms.
func NewEmptyTermError() *StandardError {
	return &StandardError{
		Code:      ErrCodeEmptyTerm,
		Message:   "Term is empty or whitespace only",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidVocabularyError creates a non-retryable caller error.
func NewInvalidVocabularyError(name string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidVocabulary,
		Message:   "Unknown terminology vocabulary",
		Details:   fmt.Sprintf("vocabulary: %s", name),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewVocabularyUnavailableError creates a retryable store fault for one vocabulary.
func NewVocabularyUnavailableError(vocab string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeVocabularyUnavailable,
		Message:   "Vocabulary store unavailable",
		Details:   fmt.Sprintf("vocabulary: %s, error: %v", vocab, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreTimeoutError creates a retryable store timeout error.
func NewStoreTimeoutError(vocab string) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreTimeout,
		Message:   "Vocabulary store lookup timeout",
		Details:   fmt.Sprintf("vocabulary: %s", vocab),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTermMappingFailedError wraps any failure while mapping a single batch term.
func NewTermMappingFailedError(term string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTermMappingFailed,
		Message:   "Failed to map term",
		Details:   fmt.Sprintf("term: %s, error: %v", term, err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewOrchestratorFaultError creates a systemic batch failure affecting all terms.
func NewOrchestratorFaultError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeOrchestratorFault,
		Message:   "Batch orchestrator fault",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewJobNotFoundError creates a non-retryable lookup error for unknown job IDs.
func NewJobNotFoundError(jobID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeJobNotFound,
		Message:   "Batch job not found",
		Details:   fmt.Sprintf("jobId: %s", jobID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewJobNotCompletedError signals a result fetch before the job is terminal.
func NewJobNotCompletedError(jobID, status string) *StandardError {
	return &StandardError{
		Code:      ErrCodeJobNotCompleted,
		Message:   "Batch job has not completed",
		Details:   fmt.Sprintf("jobId: %s, status: %s", jobID, status),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewBatchTooLargeError creates a non-retryable caller error.
func NewBatchTooLargeError(got, max int) *StandardError {
	return &StandardError{
		Code:      ErrCodeBatchTooLarge,
		Message:   "Batch exceeds maximum term count",
		Details:   fmt.Sprintf("terms: %d, max: %d", got, max),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. HTTP Mapping
// ==========================

// HTTPStatus maps an error code to the HTTP status the API surfaces.
// Per-term batch failures never reach this mapping; they are embedded in
// results with a 200 response.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidParameter, ErrCodeEmptyTerm, ErrCodeInvalidVocabulary, ErrCodeBatchTooLarge:
		return http.StatusBadRequest
	case ErrCodeJobNotFound:
		return http.StatusNotFound
	case ErrCodeJobNotCompleted:
		return http.StatusConflict
	case ErrCodeVocabularyUnavailable, ErrCodeStoreTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ==========================
// 4. Utility Functions
// ==========================

// AsStandardError normalizes any error into a *StandardError.
func AsStandardError(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// IsCallerError reports whether the error is the caller's fault (4xx class).
func IsCallerError(err error) bool {
	return HTTPStatus(AsStandardError(err).Code) < http.StatusInternalServerError &&
		HTTPStatus(AsStandardError(err).Code) >= http.StatusBadRequest
}
