package docker

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Container errors
	ErrContainerNotFound      = errors.New("container not found")
	ErrContainerAlreadyExists = errors.New("container already exists")

	// Network errors
	ErrNetworkNotFound      = errors.New("network not found")
	ErrNetworkAlreadyExists = errors.New("network already exists")
	ErrNetworkInUse         = errors.New("network has active endpoints")

	// Image errors
	ErrImageNotFound   = errors.New("image not found")
	ErrImagePullFailed = errors.New("image pull failed")

	// Connection errors
	ErrPortAlreadyAllocated = errors.New("port is already allocated")
	ErrConnectionFailed     = errors.New("docker connection failed")

	// Rollback errors
	ErrPartialRollback = errors.New("rollback could not remove all resources")
)

// DockerError wraps runtime errors with additional context.
type DockerError struct {
	Op      string // Operation that failed
	Entity  string // Entity type (container, network, image)
	ID      string // Entity ID if applicable
	Message string
	Err     error
}

func (e *DockerError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %s", e.Op, e.Entity, e.ID, e.Message)
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Entity, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *DockerError) Unwrap() error {
	return e.Err
}

// NewDockerError creates a new DockerError.
func NewDockerError(op, entity, id, message string, err error) *DockerError {
	return &DockerError{
		Op:      op,
		Entity:  entity,
		ID:      id,
		Message: message,
		Err:     err,
	}
}

// CleanupError reports a cleanup pass that could not remove every
// resource. The leftover identifiers are surfaced so the operator can
// remove them manually; this error is never silently swallowed.
type CleanupError struct {
	Subject   string   // plan id or service id being cleaned up
	Leftovers []string // container ids / network names still present
	Err       error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup of %s left resources behind: %s",
		e.Subject, strings.Join(e.Leftovers, ", "))
}

func (e *CleanupError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrPartialRollback
}
