package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrModelUnavailable signals that the model bundle was never loaded or has
// been disabled. It is internal: callers of the detector never see it, they
// get a rule-based result instead.
var ErrModelUnavailable = errors.New("model bundle unavailable")

// ValidationError reports missing or malformed caller input. It is the only
// error class surfaced to API clients (HTTP 400).
type ValidationError struct {
	Fields []string
	Msg    string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s", e.Msg, strings.Join(e.Fields, ", "))
	}
	return e.Msg
}

// NewMissingFieldsError builds the ValidationError for absent required fields.
func NewMissingFieldsError(fields ...string) *ValidationError {
	return &ValidationError{
		Fields: fields,
		Msg:    "missing required fields",
	}
}

// NewValidationError builds a ValidationError with a free-form message.
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Msg: msg}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// InferenceError wraps a failure inside the learned-model scoring path
// (vectorization, scaling, or the forward pass). Treated exactly like
// ErrModelUnavailable: caught by the detector, never propagated.
type InferenceError struct {
	Stage string
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("model inference failed at %s: %v", e.Stage, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }
