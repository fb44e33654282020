package plan

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

// Planning errors never leave partial state behind: they are raised before
// any container exists, so the caller has nothing to clean up.
var (
	// Validation errors
	ErrCyclicDependency = errors.New("cyclic dependency detected")
	ErrUnknownEntry     = errors.New("unknown catalog entry")

	// Resource errors
	ErrResourceExhausted = errors.New("no free host port in scan range")
	ErrPathConflict      = errors.New("volume path is owned by another deployment")

	// Plan lifecycle errors
	ErrInvalidTransition = errors.New("invalid plan status transition")
	ErrNotApplyable      = errors.New("plan is not in validated status")
)

// Error wraps planning failures with the entry being processed.
type Error struct {
	Op      string // operation that failed (build, allocate, claim)
	EntryID string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.EntryID != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.EntryID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new plan Error.
func NewError(op, entryID, message string, err error) *Error {
	return &Error{
		Op:      op,
		EntryID: entryID,
		Message: message,
		Err:     err,
	}
}
