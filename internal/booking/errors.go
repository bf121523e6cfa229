package booking

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError means the caller's input is malformed or inconsistent.
// The client must fix the request; retrying unchanged will never succeed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func validationf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError means a referenced entity does not exist. Terminal, never
// retried.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ConflictError means the requested slots are contended. The client should
// refresh availability and retry with a fresh selection; this is the only
// retryable failure kind.
type ConflictError struct {
	Message string
	// Starts lists the start times of the offending slots, when known.
	Starts []time.Time
}

func (e *ConflictError) Error() string {
	if len(e.Starts) == 0 {
		return e.Message
	}
	parts := make([]string, len(e.Starts))
	for i, t := range e.Starts {
		parts[i] = t.Format("2006-01-02 15:04")
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(parts, ", "))
}

// StorageError wraps a failure of the underlying store. Surfaced to clients
// as an opaque server error; by the time it is returned every partially
// applied step has been compensated.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storagef(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}
