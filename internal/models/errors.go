package models

import (
	"errors"
	"fmt"
)

// Application-wide standard errors
var (
	// Common resource errors
	ErrNotFound      = errors.New("resource not found")
	ErrStoryNotFound = errors.New("story not found")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")

	// Validation errors
	ErrInvalidInput  = errors.New("invalid input data")
	ErrQuotaExceeded = errors.New("monthly story quota exceeded")

	// Generation lifecycle errors
	ErrStateConflict   = errors.New("operation not allowed in current generation status")
	ErrVersionConflict = errors.New("story was modified concurrently")
	ErrDispatchFailed  = errors.New("failed to dispatch generation job")
)

// StateConflictError reports an operation attempted in an illegal generation
// status. It matches ErrStateConflict via errors.Is.
type StateConflictError struct {
	Op       string
	Current  GenerationStatus
	Expected GenerationStatus
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s: status is %q, expected %q", e.Op, e.Current, e.Expected)
}

func (e *StateConflictError) Is(target error) bool {
	return target == ErrStateConflict
}

// NewStateConflict builds a StateConflictError for the given operation.
func NewStateConflict(op string, current, expected GenerationStatus) error {
	return &StateConflictError{Op: op, Current: current, Expected: expected}
}
