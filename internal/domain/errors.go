package domain

import "fmt"

// Error types for consistent error handling across the service.

// ErrNotFound indicates a resource was not found. The balance recomputation
// service treats it as "parent vanished mid-recompute" and skips silently;
// every other caller surfaces it.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a validation error (bad input). Raised before any
// network call; a draft that fails validation never reaches the pipeline.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrRemoteWrite indicates a durable write was rejected or timed out.
// Recoverable: the optimistic local record is retained and flagged failed.
type ErrRemoteWrite struct {
	Operation string
	Err       error
}

func (e *ErrRemoteWrite) Error() string {
	return fmt.Sprintf("durable write failed [%s]: %v", e.Operation, e.Err)
}

func (e *ErrRemoteWrite) Unwrap() error {
	return e.Err
}

// ErrStoreUnavailable indicates the backing store could not be read.
// Recompute propagates it to the caller without any partial write.
type ErrStoreUnavailable struct {
	Err error
}

func (e *ErrStoreUnavailable) Error() string {
	return fmt.Sprintf("backing store unavailable: %v", e.Err)
}

func (e *ErrStoreUnavailable) Unwrap() error {
	return e.Err
}

// ErrStaleUndo indicates an undo token was applied after the entity was
// mutated again by another path. It must be rejected explicitly, never
// silently applied over newer state.
type ErrStaleUndo struct {
	Resource string
	ID       string
}

func (e *ErrStaleUndo) Error() string {
	return fmt.Sprintf("stale undo token for %s %s: entity changed since deletion", e.Resource, e.ID)
}

// ErrUnauthorized indicates a missing or invalid session token. Fatal for
// the session: the caller must redirect away, no further reconciliation is
// attempted.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}
