package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// UpstreamError wraps a failure of the remote LMS API. Op names what was being
// fetched ("Courses", "Grades", ...) so callers can surface which collection
// failed. CanRetry and NeedsReauth are hints for the client: a bad token needs
// re-authentication, a timeout or 5xx is worth retrying as-is.
type UpstreamError struct {
	Op          string
	Err         error
	StatusCode  int
	Timeout     bool
	CanRetry    bool
	NeedsReauth bool
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func NewUpstreamTimeout(op string, err error) error {
	return &UpstreamError{Op: op, Err: err, Timeout: true, CanRetry: true}
}

// PersistenceError wraps a store write failure; Details echoes the underlying
// message for the response envelope.
type PersistenceError struct {
	Err     error
	Details string
}

func NewPersistenceError(err error, msg string) error {
	return &PersistenceError{Err: err, Details: msg}
}

func (e *PersistenceError) Error() string {
	if e.Details == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Details, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
