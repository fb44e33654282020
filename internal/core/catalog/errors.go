package catalog

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Entry validation errors
	ErrEntryNoID       = errors.New("entry must have an id")
	ErrEntryNoImage    = errors.New("entry must have an image reference")
	ErrInvalidPort     = errors.New("invalid port declaration")
	ErrInvalidVolume   = errors.New("invalid volume declaration")
	ErrDuplicateEntry  = errors.New("duplicate entry id")
	ErrDuplicateBundle = errors.New("duplicate bundle name")
	ErrEmptyBundle     = errors.New("bundle must have at least one member")

	// Loader errors
	ErrInvalidCatalog = errors.New("invalid catalog document")
)

// ValidationError wraps validation failures with the field that failed.
type ValidationError struct {
	Field   string // e.g., "entries[2].ports[0]"
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
