package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a processing failure. Retry eligibility is fixed by
// the kind, never chosen by the caller.
type ErrorKind string

const (
	// ErrorKindCredential means stored credentials are invalid or expired.
	// Not retryable: the job cannot succeed without human intervention.
	ErrorKindCredential ErrorKind = "credential"

	// ErrorKindValidation means the job itself is malformed, e.g. the user
	// has no linked profile. Not retryable.
	ErrorKindValidation ErrorKind = "validation"

	// ErrorKindRateLimit means the upstream throttled us. Retryable.
	ErrorKindRateLimit ErrorKind = "rate_limit"

	// ErrorKindNetwork is a transient connectivity failure. Retryable.
	ErrorKindNetwork ErrorKind = "network"

	// ErrorKindInternal covers everything unclassified. Retryable by
	// default: prefer a wasted retry over silent data loss.
	ErrorKindInternal ErrorKind = "internal"
)

// ProcessingError is the single failure type processors raise. Executor and
// retry engine derive all control flow from its kind.
type ProcessingError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ProcessingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Retryable reports whether failures of this kind may be re-attempted.
func (e *ProcessingError) Retryable() bool {
	switch e.Kind {
	case ErrorKindCredential, ErrorKindValidation:
		return false
	}
	return true
}

// NewCredentialError builds a non-retryable credential failure.
func NewCredentialError(msg string) *ProcessingError {
	return &ProcessingError{Kind: ErrorKindCredential, Message: msg}
}

// NewValidationError builds a non-retryable validation failure.
func NewValidationError(msg string) *ProcessingError {
	return &ProcessingError{Kind: ErrorKindValidation, Message: msg}
}

// NewRateLimitError builds a retryable rate limit failure.
func NewRateLimitError(msg string) *ProcessingError {
	return &ProcessingError{Kind: ErrorKindRateLimit, Message: msg}
}

// NewNetworkError builds a retryable network failure wrapping its cause.
func NewNetworkError(msg string, err error) *ProcessingError {
	return &ProcessingError{Kind: ErrorKindNetwork, Message: msg, Err: err}
}

// Classify maps any error to a ProcessingError. Already-classified errors
// pass through; everything else becomes an internal, retryable failure.
func Classify(err error) *ProcessingError {
	var perr *ProcessingError
	if errors.As(err, &perr) {
		return perr
	}
	return &ProcessingError{Kind: ErrorKindInternal, Message: err.Error(), Err: err}
}
