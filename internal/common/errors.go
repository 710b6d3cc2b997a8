package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error taxonomy for the ingestion pipeline. ErrConfiguration and
// ErrValidation are preconditions: they abort a whole run before any work
// starts. Everything else degrades to a per-file or per-record failure
// outcome and never escalates past its own unit.
var (
	ErrConfiguration = errors.New("extraction service not configured")
	ErrUnavailable   = errors.New("extraction service unavailable")
	ErrValidation    = errors.New("validation failed")
	ErrTimeout       = errors.New("deadline exceeded")
	ErrExtraction    = errors.New("extraction failed")
	ErrPersistence   = errors.New("persistence failed")
	ErrNotFound      = errors.New("resource not found")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// RetryHint maps an upstream HTTP status to a human-readable retry-worthiness
// hint appended to failure reasons. Cold-start statuses get a "retry shortly"
// nudge; everything else gets nothing.
func RetryHint(status int) string {
	switch status {
	case 502, 503, 504:
		return "service likely cold-starting, retry shortly"
	case 408:
		return "request timed out upstream, retry shortly"
	default:
		return ""
	}
}
