package pulse

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error types for common failure scenarios.
var (
	// ErrJobFailed indicates a job reached a failure-terminal status.
	ErrJobFailed = errors.New("job failed")

	// ErrJobTimeout indicates a job did not finish within its wait budget.
	ErrJobTimeout = errors.New("job timed out")

	// ErrInvalidRequest indicates a request was rejected before being sent.
	ErrInvalidRequest = errors.New("invalid request")
)

// APIError represents a non-success response from the Pulse API.
type APIError struct {
	// Op is the operation that failed, e.g. "similarity" or "job status".
	Op string

	// StatusCode is the HTTP status code.
	StatusCode int

	// Detail is the server-supplied error payload.
	Detail string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: HTTP %d", e.Op, e.StatusCode)
}

// IsTransient reports whether a job status query that failed with this
// error should be retried.
func (e *APIError) IsTransient() bool {
	return e.StatusCode == http.StatusNotFound || e.StatusCode >= 500
}

// JobFailedError is returned when a job reaches an error or failed status.
type JobFailedError struct {
	JobID   string
	Status  JobState
	Message string
}

// Error implements the error interface.
func (e *JobFailedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("job %s %s: %s", e.JobID, e.Status, e.Message)
	}
	return fmt.Sprintf("job %s %s", e.JobID, e.Status)
}

// Unwrap returns ErrJobFailed.
func (e *JobFailedError) Unwrap() error { return ErrJobFailed }

// TimeoutError is returned when a job is still running after its wait budget.
type TimeoutError struct {
	JobID   string
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s did not finish within %s", e.JobID, e.Timeout)
}

// Unwrap returns ErrJobTimeout.
func (e *TimeoutError) Unwrap() error { return ErrJobTimeout }

// IsTransient returns true if err is an APIError worth retrying.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsTransient()
	}
	return false
}

// IsTimeout returns true if err is a job wait timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrJobTimeout)
}

// IsJobFailure returns true if err reports a failed job.
func IsJobFailure(err error) bool {
	return errors.Is(err, ErrJobFailed)
}
