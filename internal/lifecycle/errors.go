package lifecycle

import (
	"errors"
	"fmt"

	"github.com/fentz26/planboard/internal/models"
)

// Sentinel errors for lifecycle decisions.
var (
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrNotATask            = errors.New("record is a plan, not a task")
	ErrNotTerminal         = errors.New("task is not in a terminal status")
	ErrNotAwaitingApproval = errors.New("task is not awaiting approval")
)

// InvalidTransitionError carries both sides of a rejected status change so
// callers can tell the admin exactly why it failed.
type InvalidTransitionError struct {
	Current   models.TaskStatus
	Requested models.TaskStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot change status from %s to %s", e.Current, e.Requested)
}

// Is makes errors.Is(err, ErrInvalidTransition) match.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
