package container

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrUnknownVariant is returned by factories when no driver is
	// registered for a variant. Fatal, never retried.
	ErrUnknownVariant = errors.New("unknown container variant")

	// ErrContainerUnavailable marks driver failures that may resolve on
	// retry, such as a container mid-restart.
	ErrContainerUnavailable = errors.New("container unavailable")
)

// ContainerError wraps a driver-reported deployment failure. These are the
// transient failures the retry loop tolerates; the underlying message is
// preserved so operators see the container-side diagnostic.
type ContainerError struct {
	Op        string // Operation that failed
	Container string // Container name
	Message   string
	Err       error
}

func (e *ContainerError) Error() string {
	if e.Container != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Container, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ContainerError) Unwrap() error {
	return e.Err
}

// NewContainerError creates a new ContainerError.
func NewContainerError(op, containerName, message string, err error) *ContainerError {
	return &ContainerError{
		Op:        op,
		Container: containerName,
		Message:   message,
		Err:       err,
	}
}

// IsContainerError reports whether err is a driver-reported container
// failure, i.e. a transient failure worth retrying.
func IsContainerError(err error) bool {
	var ce *ContainerError
	return errors.As(err, &ce)
}
