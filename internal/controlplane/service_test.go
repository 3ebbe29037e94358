package controlplane

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/fentz26/planboard/internal/audit"
	"github.com/fentz26/planboard/internal/lifecycle"
	"github.com/fentz26/planboard/internal/models"
	"github.com/fentz26/planboard/internal/store"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *store.Store, *testClock) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	clock := &testClock{now: day0}
	svc := NewService(st, audit.NewPDRWriter(st), lifecycle.NewEngine(clock))
	return svc, st, clock
}

func TestChangeStatus_TransitionTable(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, models.NewTask{Title: "Brand kit", ClientID: "c1"})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	id := task.ID

	// PENDING cannot jump straight to COMPLETED
	_, err = svc.ChangeStatus(ctx, id, models.TaskStatusCompleted)
	var ite *lifecycle.InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("Expected InvalidTransitionError, got %v", err)
	}
	if ite.Current != models.TaskStatusPending || ite.Requested != models.TaskStatusCompleted {
		t.Errorf("error carries %s -> %s", ite.Current, ite.Requested)
	}

	got, _ := svc.GetAdminTask(ctx, id)
	if got.Status != models.TaskStatusPending {
		t.Errorf("rejected transition changed status to %s", got.Status)
	}

	steps := []models.TaskStatus{models.TaskStatusActive, models.TaskStatusCompleted}
	for _, s := range steps {
		if _, err := svc.ChangeStatus(ctx, id, s); err != nil {
			t.Fatalf("ChangeStatus(%s) failed: %v", s, err)
		}
	}

	got, _ = svc.GetAdminTask(ctx, id)
	if got.ClosedAt == nil || !got.ClosedAt.Equal(day0) {
		t.Errorf("closed_at = %v, want %v", got.ClosedAt, day0)
	}
	if !got.CanReopen {
		t.Error("completed task should be reopenable")
	}

	// Terminal states leave only through reopen
	if _, err := svc.ChangeStatus(ctx, id, models.TaskStatusActive); !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition from COMPLETED, got %v", err)
	}
	reopened, err := svc.ReopenTask(ctx, id)
	if err != nil {
		t.Fatalf("ReopenTask failed: %v", err)
	}
	if reopened.Status != models.TaskStatusActive || reopened.ClosedAt != nil {
		t.Errorf("reopen gave status=%s closed_at=%v", reopened.Status, reopened.ClosedAt)
	}
	if _, err := svc.ReopenTask(ctx, id); !errors.Is(err, lifecycle.ErrNotTerminal) {
		t.Errorf("Expected ErrNotTerminal, got %v", err)
	}
}

func TestChangeStatus_SameStatusIsNoop(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	task, _ := svc.CreateTask(ctx, models.NewTask{Title: "Noop"})
	stored, _ := svc.GetAdminTask(ctx, task.ID)
	before, _ := st.ListPDR(ctx, task.ID, 0)

	got, err := svc.ChangeStatus(ctx, task.ID, models.TaskStatusPending)
	if err != nil {
		t.Fatalf("same-status request should not fail: %v", err)
	}
	if !got.UpdatedAt.Equal(stored.UpdatedAt) {
		t.Error("same-status request should persist nothing")
	}

	after, _ := st.ListPDR(ctx, task.ID, 0)
	if len(after) != len(before) {
		t.Errorf("same-status request wrote %d records", len(after)-len(before))
	}
}

func TestEditTask_AllOrNothing(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	task, _ := svc.CreateTask(ctx, models.NewTask{Title: "Bundle"})
	svc.ChangeStatus(ctx, task.ID, models.TaskStatusActive)

	pending := models.TaskStatusPending
	_, err := svc.EditTask(ctx, task.ID, EditRequest{
		Status: &pending,
		Patch:  models.TaskPatch{Progress: models.Float(80)},
	})
	if !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition, got %v", err)
	}

	got, _ := svc.GetAdminTask(ctx, task.ID)
	if got.Progress != nil {
		t.Errorf("progress edit leaked through a rejected status change: %v", *got.Progress)
	}

	completed := models.TaskStatusCompleted
	got, err = svc.EditTask(ctx, task.ID, EditRequest{
		Status: &completed,
		Patch:  models.TaskPatch{Progress: models.Float(80)},
	})
	if err != nil {
		t.Fatalf("EditTask failed: %v", err)
	}
	if got.Status != models.TaskStatusCompleted || got.Computed.Progress != 80 {
		t.Errorf("edit gave status=%s progress=%v", got.Status, got.Computed.Progress)
	}

	if _, err := svc.EditTask(ctx, task.ID, EditRequest{}); !errors.Is(err, ErrEmptyEdit) {
		t.Errorf("Expected ErrEmptyEdit, got %v", err)
	}
}

func TestPurchaseAndApprove(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	plan, err := svc.CreatePlan(ctx, models.NewPlan{Title: "Starter", CreditCost: models.Float(10)})
	if err != nil {
		t.Fatalf("CreatePlan failed: %v", err)
	}

	bought, err := svc.PurchasePlan(ctx, plan.ID, "c1")
	if err != nil {
		t.Fatalf("PurchasePlan failed: %v", err)
	}
	if bought.Status != models.TaskStatusPendingApproval {
		t.Errorf("Expected PENDING_APPROVAL, got %s", bought.Status)
	}

	// The table does not govern PENDING_APPROVAL
	if _, err := svc.ChangeStatus(ctx, bought.ID, models.TaskStatusActive); !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition before approval, got %v", err)
	}

	approved, err := svc.ApproveTask(ctx, bought.ID)
	if err != nil {
		t.Fatalf("ApproveTask failed: %v", err)
	}
	if approved.Status != models.TaskStatusPending {
		t.Errorf("Expected PENDING after approval, got %s", approved.Status)
	}
	if _, err := svc.ApproveTask(ctx, bought.ID); !errors.Is(err, lifecycle.ErrNotAwaitingApproval) {
		t.Errorf("Expected ErrNotAwaitingApproval, got %v", err)
	}

	// Plans never enter the lifecycle
	if _, err := svc.ChangeStatus(ctx, plan.ID, models.TaskStatusActive); !errors.Is(err, lifecycle.ErrNotATask) {
		t.Errorf("Expected ErrNotATask for a plan, got %v", err)
	}
	if _, err := svc.PurchasePlan(ctx, plan.ID, " "); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for blank client, got %v", err)
	}
}

func TestMilestonesStampedOnProgressEdit(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	task, _ := svc.CreateTask(ctx, models.NewTask{
		Title:          "Articles",
		ProgressMode:   models.ProgressModeManual,
		ProgressTarget: models.Float(10),
		Milestones: []models.Milestone{
			{Name: "Half", Percentage: 50},
			{Name: "First", Percentage: 30},
		},
	})
	svc.ChangeStatus(ctx, task.ID, models.TaskStatusActive)

	clock.now = day0.Add(time.Hour)
	got, err := svc.PatchTask(ctx, task.ID, models.TaskPatch{ProgressAchieved: models.Float(4)})
	if err != nil {
		t.Fatalf("PatchTask failed: %v", err)
	}
	if got.Computed.Progress != 40 {
		t.Errorf("progress = %v, want 40", got.Computed.Progress)
	}
	if got.Computed.ActiveMilestone == nil || got.Computed.ActiveMilestone.Name != "First" {
		t.Errorf("active milestone = %+v, want First", got.Computed.ActiveMilestone)
	}
	if got.Computed.NextMilestone == nil || got.Computed.NextMilestone.Name != "Half" {
		t.Errorf("next milestone = %+v, want Half", got.Computed.NextMilestone)
	}

	for _, m := range got.Milestones {
		switch m.Name {
		case "First":
			if m.ReachedAt == nil || !m.ReachedAt.Equal(clock.now) {
				t.Errorf("First reached_at = %v, want %v", m.ReachedAt, clock.now)
			}
		case "Half":
			if m.ReachedAt != nil {
				t.Errorf("Half should not be reached yet")
			}
		}
	}
}

func TestMilestoneStampsComeOnlyFromProgress(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	task, _ := svc.CreateTask(ctx, models.NewTask{
		Title:          "Posts",
		ClientID:       "c1",
		ProgressMode:   models.ProgressModeManual,
		ProgressTarget: models.Float(100),
		Milestones:     []models.Milestone{{Name: "Half", Percentage: 50}},
	})
	svc.ChangeStatus(ctx, task.ID, models.TaskStatusActive)
	svc.PatchTask(ctx, task.ID, models.TaskPatch{ProgressAchieved: models.Float(10)})

	// A stamp sent with the milestone set is ignored at 10%
	forged := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := svc.PatchTask(ctx, task.ID, models.TaskPatch{Milestones: &[]models.Milestone{
		{Name: "Half", Percentage: 50, ReachedAt: &forged},
	}})
	if err != nil {
		t.Fatalf("PatchTask failed: %v", err)
	}
	if got.Milestones[0].ReachedAt != nil {
		t.Errorf("unreached milestone carries reached_at %v", got.Milestones[0].ReachedAt)
	}
	view, _ := svc.GetClientTask(ctx, "c1", task.ID)
	if view.Milestones[0].ReachedAt != nil {
		t.Errorf("client sees reached_at %v", view.Milestones[0].ReachedAt)
	}

	// Crossing the threshold stamps it once
	crossed := day0.Add(time.Hour)
	clock.now = crossed
	got, _ = svc.PatchTask(ctx, task.ID, models.TaskPatch{ProgressAchieved: models.Float(60)})
	if got.Milestones[0].ReachedAt == nil || !got.Milestones[0].ReachedAt.Equal(crossed) {
		t.Fatalf("reached_at = %v, want %v", got.Milestones[0].ReachedAt, crossed)
	}
	id := got.Milestones[0].ID

	// Resending the set without stamps keeps the first crossing time
	clock.now = day0.Add(48 * time.Hour)
	for _, ms := range [][]models.Milestone{
		{{ID: id, Name: "Half", Percentage: 50}},
		{{Name: "Half", Percentage: 50, Color: "#10B981"}},
	} {
		got, err = svc.PatchTask(ctx, task.ID, models.TaskPatch{Milestones: &ms})
		if err != nil {
			t.Fatalf("PatchTask failed: %v", err)
		}
		m := got.Milestones[0]
		if m.ID != id || m.ReachedAt == nil || !m.ReachedAt.Equal(crossed) {
			t.Errorf("milestone after resend = %+v, want id %s stamped at %v", m, id, crossed)
		}
	}
}

func TestMilestoneIDsStayWithTheirTask(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	a, _ := svc.CreateTask(ctx, models.NewTask{
		Title:      "A",
		Milestones: []models.Milestone{{Name: "Kickoff", Percentage: 10}, {Name: "Launch", Percentage: 90}},
	})
	b, _ := svc.CreateTask(ctx, models.NewTask{Title: "B"})

	copied := models.CloneMilestones(a.Milestones)
	got, err := svc.PatchTask(ctx, b.ID, models.TaskPatch{Milestones: &copied})
	if err != nil {
		t.Fatalf("copying milestones between tasks failed: %v", err)
	}
	if len(got.Milestones) != 2 {
		t.Fatalf("expected 2 milestones, got %d", len(got.Milestones))
	}
	for i, m := range got.Milestones {
		if m.ID == "" || m.ID == a.Milestones[i].ID {
			t.Errorf("milestone %s id = %q, want a fresh id", m.Name, m.ID)
		}
	}

	orig, _ := svc.GetAdminTask(ctx, a.ID)
	if len(orig.Milestones) != 2 || orig.Milestones[0].ID != a.Milestones[0].ID {
		t.Errorf("source task milestones changed: %+v", orig.Milestones)
	}

	// Repeating an id inside one set is not a storage failure either
	repeated := []models.Milestone{
		{ID: got.Milestones[0].ID, Name: "One", Percentage: 10},
		{ID: got.Milestones[0].ID, Name: "Two", Percentage: 20},
	}
	got, err = svc.PatchTask(ctx, b.ID, models.TaskPatch{Milestones: &repeated})
	if err != nil {
		t.Fatalf("repeated ids failed: %v", err)
	}
	if got.Milestones[0].ID == got.Milestones[1].ID {
		t.Errorf("repeated id survived: %q", got.Milestones[0].ID)
	}
}

func TestAutoProgressFreezesWhenClosed(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	end := day0.AddDate(0, 0, 10)
	task, _ := svc.CreateTask(ctx, models.NewTask{Title: "Sprint", StartDate: &day0, EndDate: &end})
	svc.ChangeStatus(ctx, task.ID, models.TaskStatusActive)

	clock.now = day0.AddDate(0, 0, 5)
	if _, err := svc.ChangeStatus(ctx, task.ID, models.TaskStatusCompleted); err != nil {
		t.Fatalf("ChangeStatus failed: %v", err)
	}

	clock.now = day0.AddDate(0, 0, 20)
	got, _ := svc.GetAdminTask(ctx, task.ID)
	if got.Computed.Progress != 50 {
		t.Errorf("closed AUTO task progress = %v, want 50", got.Computed.Progress)
	}

	// An open task keeps running past its end date
	open, _ := svc.CreateTask(ctx, models.NewTask{Title: "Overdue", StartDate: &day0, EndDate: &end})
	view, _ := svc.GetAdminTask(ctx, open.ID)
	if view.Computed.Progress != 200 || !view.Computed.Overachieving {
		t.Errorf("open AUTO task progress = %v, want 200 overachieving", view.Computed.Progress)
	}
}

func TestManualOverachievingScenario(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	task, _ := svc.CreateTask(ctx, models.NewTask{
		Title:            "Leads",
		ProgressMode:     models.ProgressModeManual,
		ProgressTarget:   models.Float(100),
		ProgressAchieved: models.Float(120),
	})
	svc.ChangeStatus(ctx, task.ID, models.TaskStatusActive)

	got, _ := svc.GetAdminTask(ctx, task.ID)
	if got.Computed.Progress != 120 || !got.Computed.Overachieving {
		t.Errorf("progress = %v overachieving = %v, want 120 true", got.Computed.Progress, got.Computed.Overachieving)
	}

	_, err := svc.ChangeStatus(ctx, task.ID, models.TaskStatusPending)
	var ite *lifecycle.InvalidTransitionError
	if !errors.As(err, &ite) || ite.Current != models.TaskStatusActive || ite.Requested != models.TaskStatusPending {
		t.Errorf("Expected InvalidTransition{ACTIVE, PENDING}, got %v", err)
	}
	if _, err := svc.ChangeStatus(ctx, task.ID, models.TaskStatusCompleted); err != nil {
		t.Errorf("ACTIVE -> COMPLETED failed: %v", err)
	}
}

func TestClientViews(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	task, _ := svc.CreateTask(ctx, models.NewTask{
		Title:         "Logo",
		ClientID:      "c1",
		InternalNotes: "client is difficult",
		Quantity:      models.Int(3),
	})
	other, _ := svc.CreateTask(ctx, models.NewTask{Title: "Other", ClientID: "c2"})
	plan, _ := svc.CreatePlan(ctx, models.NewPlan{Title: "Plan"})

	view, err := svc.GetClientTask(ctx, "c1", task.ID)
	if err != nil {
		t.Fatalf("GetClientTask failed: %v", err)
	}
	if view.Quantity == nil || *view.Quantity != 3 {
		t.Errorf("quantity should be visible by default on admin-created tasks, got %v", view.Quantity)
	}

	if _, err := svc.GetClientTask(ctx, "c1", other.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound for another client's task, got %v", err)
	}
	// A plan id is not a client's task; it must not reach the projection
	if _, err := svc.GetClientTask(ctx, "c1", plan.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound for a plan, got %v", err)
	}

	list, err := svc.ListClientTasks(ctx, "c1")
	if err != nil {
		t.Fatalf("ListClientTasks failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != task.ID {
		t.Errorf("Expected only c1's task, got %+v", list)
	}
}

func TestTaskHistory(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	task, _ := svc.CreateTask(ctx, models.NewTask{Title: "Audit me"})
	svc.ChangeStatus(ctx, task.ID, models.TaskStatusCompleted) // rejected
	svc.ChangeStatus(ctx, task.ID, models.TaskStatusActive)

	entries, err := svc.TaskHistory(ctx, task.ID)
	if err != nil {
		t.Fatalf("TaskHistory failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(entries))
	}

	outcomes := map[string]int{}
	for _, e := range entries {
		outcomes[e.Action+":"+e.Outcome]++
	}
	if outcomes["task.create:success"] != 1 || outcomes["task.status:rejected"] != 1 || outcomes["task.status:success"] != 1 {
		t.Errorf("unexpected history: %v", outcomes)
	}

	if _, err := svc.TaskHistory(ctx, "non-existent-id"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
}

func TestCreateTask_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   models.NewTask
		want error
	}{
		{"blank title", models.NewTask{Title: "  "}, ErrInvalidInput},
		{"bad mode", models.NewTask{Title: "x", ProgressMode: "HYBRID"}, models.ErrUnknownProgressMode},
		{"unnamed milestone", models.NewTask{Title: "x", Milestones: []models.Milestone{{Percentage: 10}}}, ErrInvalidInput},
		{"negative cost", models.NewTask{Title: "x", CreditCost: models.Float(-1)}, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateTask(ctx, tt.in); !errors.Is(err, tt.want) {
				t.Errorf("CreateTask error = %v, want %v", err, tt.want)
			}
		})
	}
}
