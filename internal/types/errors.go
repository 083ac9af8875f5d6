package types

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the import pipeline and its callers
var (
	// ErrNotFound is returned by repositories when a row does not exist for the owner
	ErrNotFound = errors.New("record not found")
	// ErrJobNotFound is returned when a job ID is not known to the tracker
	ErrJobNotFound = errors.New("job not found")
	// ErrJobFinished is returned when starting a job that already reached a terminal state
	ErrJobFinished = errors.New("job already finished")
	// ErrJobAlreadyRunning is returned when a worker is already registered for a job
	ErrJobAlreadyRunning = errors.New("job already has an active worker")
	// ErrQueueFull is returned when the worker pool cannot accept more jobs
	ErrQueueFull = errors.New("job queue is full")
	// ErrRunnerClosed is returned when submitting to a runner that is shutting down
	ErrRunnerClosed = errors.New("job runner is shut down")
	// ErrCancelled is returned by job stages that observed a cancellation checkpoint
	ErrCancelled = errors.New("job cancelled")
	// ErrItemGone is returned when the import item backing a job was deleted concurrently
	ErrItemGone = errors.New("import item no longer exists")
	// ErrConversionTimeout is returned when the file converter exceeds its time budget
	ErrConversionTimeout = errors.New("processing timed out")
)

// ValidationError is a user-caused error, reported back with an actionable message
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a validation error for the given field
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err wraps a ValidationError
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// PublicError carries a message that is safe to show to the job owner
// alongside the internal cause, which is only logged.
type PublicError struct {
	Message string
	Err     error
}

// NewPublicError wraps err with a user-facing message
func NewPublicError(message string, err error) *PublicError {
	return &PublicError{Message: message, Err: err}
}

func (e *PublicError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *PublicError) Unwrap() error {
	return e.Err
}

// PublicMessage returns the user-facing message for err, or fallback when
// err carries no public message.
func PublicMessage(err error, fallback string) string {
	var pub *PublicError
	if errors.As(err, &pub) {
		return pub.Message
	}
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Error()
	}
	return fallback
}
