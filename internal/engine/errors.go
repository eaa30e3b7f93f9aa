package engine

import (
	"errors"
	"fmt"
)

// Engine errors.
var (
	// ErrDragInProgress indicates a gesture is already active.
	ErrDragInProgress = errors.New("drag already in progress")

	// ErrNoActiveDrag indicates no gesture is active.
	ErrNoActiveDrag = errors.New("no active drag")

	// ErrNilPayload indicates a drag start without a payload.
	ErrNilPayload = errors.New("nil payload")
)

// OperationError wraps a failure with the operation and target involved.
type OperationError struct {
	Op     string // Operation name (e.g., "start", "release")
	Target string // Target of the operation (e.g., zone or payload id)
	Err    error  // Underlying error
}

// NewOperationError creates a new OperationError.
func NewOperationError(op, target string, err error) *OperationError {
	return &OperationError{Op: op, Target: target, Err: err}
}

func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Target != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
