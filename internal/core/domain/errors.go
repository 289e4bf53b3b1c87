package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict indicates a concurrent update was lost (revision mismatch)
	ErrConflict = errors.New("revision conflict")

	// ErrForbidden indicates the actor lacks permission for this action
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates the AI service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrJobCancelled indicates the job was cancelled before completion
	ErrJobCancelled = errors.New("job cancelled")
)

// StateTransitionError reports an illegal unit status change.
// It names both the current and the attempted state so callers can
// distinguish races from programming errors.
type StateTransitionError struct {
	UnitID string
	From   UnitStatus
	To     UnitStatus
	Reason string
}

func (e *StateTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("illegal transition %s -> %s for unit %s: %s", e.From, e.To, e.UnitID, e.Reason)
	}
	return fmt.Sprintf("illegal transition %s -> %s for unit %s", e.From, e.To, e.UnitID)
}

// CodecError indicates a bitext document could not be parsed or rewritten.
// The whole file operation is aborted; there are no partial writes.
type CodecError struct {
	Path  string
	Op    string // "extract" or "write"
	Cause error
}

func (e *CodecError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("codec %s failed for %s: %v", e.Op, e.Path, e.Cause)
	}
	return fmt.Sprintf("codec %s failed for %s", e.Op, e.Path)
}

func (e *CodecError) Unwrap() error {
	return e.Cause
}

// CapabilityError indicates an AI capability call failed.
// Retryable failures are retried at the job level, never inside the resolver.
type CapabilityError struct {
	Provider  string
	Message   string
	Retryable bool
	Cause     error
}

func (e *CapabilityError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("capability error (%s): %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("capability error (%s): %s", e.Provider, e.Message)
}

func (e *CapabilityError) Unwrap() error {
	return e.Cause
}
