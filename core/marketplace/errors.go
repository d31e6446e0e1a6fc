package marketplace

import (
	"errors"
	"fmt"
)

// Err is a simple string error helper.
type Err string

func (e Err) Error() string { return string(e) }

// Sentinel errors for every guard failure. Callers match with errors.Is.
// None of them indicate partial mutation; a failed operation changes
// nothing.
var (
	ErrNotFound              = Err("record not found")
	ErrInvalidParameters     = Err("invalid parameters")
	ErrUnauthorized          = Err("caller not authorized for this operation")
	ErrInvalidState          = Err("operation not permitted in current status")
	ErrDeadlineExceeded      = Err("task deadline has passed")
	ErrAlreadyExists         = Err("record already exists")
	ErrInsufficientStake     = Err("stake below required amount")
	ErrInsufficientBalance   = Err("insufficient balance")
	ErrInsufficientAllowance = Err("insufficient allowance")
	ErrPaused                = Err("marketplace is paused")
	ErrBusy                  = Err("another operation is in flight")
)

// HasActiveTaskError rejects a claim from a worker that already holds an
// active task. It carries the blocking task so callers can surface it.
type HasActiveTaskError struct {
	TaskID uint64
}

func (e *HasActiveTaskError) Error() string {
	return fmt.Sprintf("worker already holds active task %d", e.TaskID)
}

// HasActiveTask extracts the blocking task ID from err, if present.
func HasActiveTask(err error) (uint64, bool) {
	var hat *HasActiveTaskError
	if errors.As(err, &hat) {
		return hat.TaskID, true
	}
	return 0, false
}
