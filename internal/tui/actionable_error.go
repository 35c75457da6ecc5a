package tui

import (
	"github.com/mrz1836/scribe/internal/errors"
)

// ActionableError wraps an error with an actionable suggestion.
//
//	err := NewActionableError("output directory is locked", "Choose a different --out")
//	output.Error(err)
//	// ✗ output directory is locked
//	//   ▸ Try: Choose a different --out
type ActionableError struct {
	// Message is the primary error message.
	Message string

	// Suggestion should start with a verb, e.g. "Run: scribe history".
	Suggestion string

	// Context is appended to the message in parentheses when set.
	Context string

	cause error
}

// NewActionableError creates an ActionableError.
func NewActionableError(msg, suggestion string) *ActionableError {
	return &ActionableError{Message: msg, Suggestion: suggestion}
}

// FromError builds an ActionableError from the user-facing message table.
// It returns nil for nil errors.
func FromError(err error) *ActionableError {
	if err == nil {
		return nil
	}
	msg, action := errors.Actionable(err)
	ae := &ActionableError{Message: msg, Suggestion: action, cause: err}
	if msg != err.Error() {
		ae.Context = err.Error()
	}
	return ae
}

// Error implements the error interface.
func (e *ActionableError) Error() string {
	if e.Context != "" {
		return e.Message + " (" + e.Context + ")"
	}
	return e.Message
}

// Unwrap returns the underlying error, if any.
func (e *ActionableError) Unwrap() error {
	return e.cause
}

// WithContext sets the context and returns e for chaining.
func (e *ActionableError) WithContext(ctx string) *ActionableError {
	e.Context = ctx
	return e
}
