package lifecycle

import (
	"errors"
	"testing"

	"github.com/fentz26/planboard/internal/models"
)

func TestCanTransition_Table(t *testing.T) {
	allowed := map[models.TaskStatus][]models.TaskStatus{
		models.TaskStatusPending:   {models.TaskStatusActive, models.TaskStatusCancelled},
		models.TaskStatusActive:    {models.TaskStatusCompleted, models.TaskStatusCancelled},
		models.TaskStatusCompleted: nil,
		models.TaskStatusCancelled: nil,
	}

	for _, current := range models.AllStatuses() {
		for _, requested := range models.AllStatuses() {
			want := current == requested
			for _, s := range allowed[current] {
				if s == requested {
					want = true
				}
			}
			if got := CanTransition(current, requested); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", current, requested, got, want)
			}
		}
	}
}

func TestCanTransition_TerminalIsClosed(t *testing.T) {
	for _, current := range []models.TaskStatus{models.TaskStatusCompleted, models.TaskStatusCancelled} {
		for _, requested := range models.AllStatuses() {
			if requested == current {
				continue
			}
			if CanTransition(current, requested) {
				t.Errorf("terminal %s should not reach %s", current, requested)
			}
		}
	}
}

func TestValidateTransition(t *testing.T) {
	noop, err := ValidateTransition(models.TaskStatusActive, models.TaskStatusActive)
	if err != nil || !noop {
		t.Errorf("same status: noop=%v err=%v, want noop without error", noop, err)
	}

	noop, err = ValidateTransition(models.TaskStatusPending, models.TaskStatusActive)
	if err != nil || noop {
		t.Errorf("PENDING->ACTIVE: noop=%v err=%v, want allowed", noop, err)
	}

	_, err = ValidateTransition(models.TaskStatusActive, models.TaskStatusPending)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("ACTIVE->PENDING error = %v, want ErrInvalidTransition", err)
	}
	var ite *InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("error should be *InvalidTransitionError, got %T", err)
	}
	if ite.Current != models.TaskStatusActive || ite.Requested != models.TaskStatusPending {
		t.Errorf("error carries %s->%s, want ACTIVE->PENDING", ite.Current, ite.Requested)
	}
	if ite.Error() != "cannot change status from ACTIVE to PENDING" {
		t.Errorf("unexpected message: %s", ite.Error())
	}
}

func TestPendingApprovalOnlyLeavesThroughApprove(t *testing.T) {
	for _, s := range models.AllStatuses() {
		if s == models.TaskStatusPendingApproval {
			continue
		}
		if CanTransition(models.TaskStatusPendingApproval, s) {
			t.Errorf("PENDING_APPROVAL should not reach %s through the table", s)
		}
		if CanTransition(s, models.TaskStatusPendingApproval) {
			t.Errorf("%s should never reach PENDING_APPROVAL", s)
		}
	}

	next, err := Approve(models.TaskStatusPendingApproval)
	if err != nil || next != models.TaskStatusPending {
		t.Errorf("Approve = %s, %v; want PENDING", next, err)
	}
	if _, err := Approve(models.TaskStatusActive); !errors.Is(err, ErrNotAwaitingApproval) {
		t.Errorf("Approve(ACTIVE) error = %v, want ErrNotAwaitingApproval", err)
	}
}

func TestReopen(t *testing.T) {
	a, err := Reopen(models.TaskStatusCompleted)
	if err != nil {
		t.Fatalf("Reopen(COMPLETED): %v", err)
	}
	b, err := Reopen(models.TaskStatusCancelled)
	if err != nil {
		t.Fatalf("Reopen(CANCELLED): %v", err)
	}
	if a != models.TaskStatusActive || b != models.TaskStatusActive {
		t.Errorf("reopen results %s, %s; want ACTIVE for both", a, b)
	}

	// After reopen the ACTIVE row applies as if the task had never closed.
	for _, s := range models.AllStatuses() {
		if CanTransition(a, s) != CanTransition(models.TaskStatusActive, s) {
			t.Errorf("reopened task disagrees with ACTIVE row for %s", s)
		}
	}

	for _, s := range []models.TaskStatus{models.TaskStatusPending, models.TaskStatusActive, models.TaskStatusPendingApproval} {
		if _, err := Reopen(s); !errors.Is(err, ErrNotTerminal) {
			t.Errorf("Reopen(%s) error = %v, want ErrNotTerminal", s, err)
		}
	}
}

func TestAllowedTargets(t *testing.T) {
	got := AllowedTargets(models.TaskStatusActive)
	if len(got) != 2 || got[0] != models.TaskStatusCompleted || got[1] != models.TaskStatusCancelled {
		t.Errorf("AllowedTargets(ACTIVE) = %v", got)
	}
	if got := AllowedTargets(models.TaskStatusCompleted); len(got) != 0 {
		t.Errorf("AllowedTargets(COMPLETED) = %v, want none", got)
	}
}

func TestEnsureTask(t *testing.T) {
	if err := EnsureTask(&models.Task{ID: "t"}); err != nil {
		t.Errorf("task rejected: %v", err)
	}
	if err := EnsureTask(&models.Task{ID: "p", IsListedInPlans: true}); !errors.Is(err, ErrNotATask) {
		t.Errorf("plan error = %v, want ErrNotATask", err)
	}
	if err := EnsureTask(nil); !errors.Is(err, ErrNotATask) {
		t.Errorf("nil error = %v, want ErrNotATask", err)
	}
}
