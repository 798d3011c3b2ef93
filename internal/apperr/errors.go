package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers and the HTTP layer
type Kind string

const (
	// Validation means malformed or missing input
	Validation Kind = "VALIDATION_ERROR"
	// InvalidTransition means the journey status does not allow the transition
	InvalidTransition Kind = "INVALID_TRANSITION"
	// InvalidState means the journey is not in a state that accepts the mutation
	InvalidState Kind = "INVALID_STATE"
	// PreconditionFailed means a business rule blocks the action
	PreconditionFailed Kind = "PRECONDITION_FAILED"
	// Conflict means concurrent updates exhausted the retry budget
	Conflict Kind = "CONFLICT"
	// NotFound means the journey id is unknown
	NotFound Kind = "NOT_FOUND"
	// Storage means the underlying store failed
	Storage Kind = "STORAGE_ERROR"
	// Internal is used for errors that carry no kind
	Internal Kind = "INTERNAL_ERROR"
)

// Error is a kinded error
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a kinded error with a formatted message
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to err
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the outermost kinded error in the chain
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
