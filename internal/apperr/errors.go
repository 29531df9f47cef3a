// Package apperr defines the error taxonomy shared by the store, service,
// retry and state layers. Terminal errors (validation, not found) are never
// retried; transient storage errors and timeouts are.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// ErrDefaultCategory is wrapped by the ValidationError returned when a caller
// tries to delete one of the seeded default categories.
var ErrDefaultCategory = errors.New("default categories cannot be deleted")

// ErrDuplicateID is wrapped by the ValidationError returned when a create
// reuses an id that is already stored.
var ErrDuplicateID = errors.New("duplicate id")

// ValidationError reports a structural or constraint violation. It is terminal.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid is shorthand for a field-attributed ValidationError.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// TransientStorageError wraps a storage-engine failure that may succeed on a
// later attempt (busy, locked, quota, aborted transaction).
type TransientStorageError struct {
	Op  string
	Err error
}

func (e *TransientStorageError) Error() string {
	return fmt.Sprintf("transient storage error: %s: %v", e.Op, e.Err)
}

func (e *TransientStorageError) Unwrap() error { return e.Err }

// TimeoutError is returned when an operation does not finish before its deadline.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("timed out after %s", e.After)
	}
	return fmt.Sprintf("%s: timed out after %s", e.Op, e.After)
}

// NotFoundError reports a missing entity, either in the store or in a mirror.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// NotFound is shorthand for a NotFoundError.
func NotFound(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return false
	}
	var terr *TransientStorageError
	if errors.As(err, &terr) {
		return true
	}
	var toErr *TimeoutError
	return errors.As(err, &toErr)
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nerr *NotFoundError
	return errors.As(err, &nerr)
}

// Message returns a short, user-facing description of err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		if verr.Field == "" {
			return verr.Message
		}
		return verr.Field + ": " + verr.Message
	}
	var nerr *NotFoundError
	if errors.As(err, &nerr) {
		return nerr.Error()
	}
	var terr *TransientStorageError
	if errors.As(err, &terr) {
		return "storage is busy, please try again"
	}
	var toErr *TimeoutError
	if errors.As(err, &toErr) {
		return "the operation timed out"
	}
	return err.Error()
}
