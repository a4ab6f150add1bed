package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures produced by the screening core.
// The API layer maps kinds to HTTP status codes; the screeners use
// them to decide what is swallowed and what aborts a request.
type ErrorKind string

const (
	ErrValidation   ErrorKind = "VALIDATION"     // malformed input, never retried
	ErrDataLoad     ErrorKind = "DATA_LOAD"      // sanctions source read/parse failure
	ErrExternalAPI  ErrorKind = "EXTERNAL_API"   // indexer transport, timeout, rate limit
	ErrDataNotFound ErrorKind = "DATA_NOT_FOUND" // identifier unknown to the indexer
	ErrInternal     ErrorKind = "INTERNAL"       // anything unexpected
)

// ScreenError carries a kind, a human message, optional structured
// details, and the wrapped cause.
type ScreenError struct {
	Kind    ErrorKind
	Message string
	Details map[string]any
	Err     error
}

func (e *ScreenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ScreenError) Unwrap() error {
	return e.Err
}

// NewError builds a ScreenError without a cause
func NewError(kind ErrorKind, format string, args ...any) *ScreenError {
	return &ScreenError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds a ScreenError around a cause
func WrapError(kind ErrorKind, err error, format string, args ...any) *ScreenError {
	return &ScreenError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithDetails attaches structured context (rate-limit counters, identifiers)
func (e *ScreenError) WithDetails(details map[string]any) *ScreenError {
	e.Details = details
	return e
}

// KindOf extracts the ErrorKind from an error chain, defaulting to INTERNAL.
func KindOf(err error) ErrorKind {
	var se *ScreenError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ErrInternal
}
