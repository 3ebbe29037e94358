// Package lifecycle implements the task status state machine, progress
// computation, milestone resolution and client visibility rules.
//
// Every function here is pure: no I/O, no shared state. Persistence and the
// atomicity of combined edits belong to the caller.
package lifecycle

import "github.com/fentz26/planboard/internal/models"

// allowedTransitions is the status adjacency table. PENDING_APPROVAL has no
// row: it leaves only through Approve. Terminal rows are empty: they leave
// only through Reopen.
var allowedTransitions = map[models.TaskStatus]map[models.TaskStatus]struct{}{
	models.TaskStatusPending: {
		models.TaskStatusActive:    {},
		models.TaskStatusCancelled: {},
	},
	models.TaskStatusActive: {
		models.TaskStatusCompleted: {},
		models.TaskStatusCancelled: {},
	},
	models.TaskStatusCompleted: {},
	models.TaskStatusCancelled: {},
}

// AllowedTargets returns the statuses reachable from current through the table.
func AllowedTargets(current models.TaskStatus) []models.TaskStatus {
	var out []models.TaskStatus
	for _, s := range models.AllStatuses() {
		if _, ok := allowedTransitions[current][s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// CanTransition reports whether requested is reachable from current.
// Requesting the current status is always allowed (it is a no-op).
func CanTransition(current, requested models.TaskStatus) bool {
	if current == requested {
		return true
	}
	_, ok := allowedTransitions[current][requested]
	return ok
}

// ValidateTransition checks a requested status change. noop is true when the
// request equals the current status; the caller must not persist anything then.
func ValidateTransition(current, requested models.TaskStatus) (noop bool, err error) {
	if current == requested {
		return true, nil
	}
	if !CanTransition(current, requested) {
		return false, &InvalidTransitionError{Current: current, Requested: requested}
	}
	return false, nil
}

// Reopen revives a terminal task. COMPLETED and CANCELLED both land on ACTIVE.
func Reopen(current models.TaskStatus) (models.TaskStatus, error) {
	if !current.IsTerminal() {
		return current, ErrNotTerminal
	}
	return models.TaskStatusActive, nil
}

// Approve moves a purchased task out of PENDING_APPROVAL.
func Approve(current models.TaskStatus) (models.TaskStatus, error) {
	if current != models.TaskStatusPendingApproval {
		return current, ErrNotAwaitingApproval
	}
	return models.TaskStatusPending, nil
}

// EnsureTask is the engine's entry check. Plans and nil records are rejected.
func EnsureTask(t *models.Task) error {
	if t == nil || t.IsPlan() {
		return ErrNotATask
	}
	return nil
}
