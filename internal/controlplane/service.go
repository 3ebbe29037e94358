// Package controlplane provides the HTTP API and service layer for planboard.
package controlplane

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/fentz26/planboard/internal/audit"
	"github.com/fentz26/planboard/internal/lifecycle"
	"github.com/fentz26/planboard/internal/models"
	"github.com/fentz26/planboard/internal/store"
)

// Service provides the control plane business logic. Every write is
// validated before anything is persisted.
type Service struct {
	store  *store.Store
	pdr    *audit.PDRWriter
	engine *lifecycle.Engine
}

// NewService creates a new control plane service.
func NewService(s *store.Store, pdr *audit.PDRWriter, engine *lifecycle.Engine) *Service {
	if engine == nil {
		engine = lifecycle.NewEngine(nil)
	}
	return &Service{
		store:  s,
		pdr:    pdr,
		engine: engine,
	}
}

// Engine returns the progress engine used for every read path.
func (s *Service) Engine() *lifecycle.Engine {
	return s.engine
}

// EditRequest bundles a status change with a field patch. Both apply or neither.
type EditRequest struct {
	Status *models.TaskStatus `json:"status,omitempty"`
	Patch  models.TaskPatch   `json:"patch"`
}

// --- Task Operations ---

// CreateTask creates a PENDING task for a client.
func (s *Service) CreateTask(ctx context.Context, in models.NewTask) (*lifecycle.AdminTask, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	mode, err := models.ParseProgressMode(string(in.ProgressMode))
	if err != nil {
		return nil, err
	}
	in.ProgressMode = mode
	if err := validateMilestones(in.Milestones); err != nil {
		return nil, err
	}
	if err := validateAmounts(in.ProgressTarget, in.ProgressAchieved, in.CreditCost, in.OfferPrice, in.OriginalPrice); err != nil {
		return nil, err
	}
	if in.Quantity != nil && *in.Quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", ErrInvalidInput)
	}

	task, err := s.store.CreateTask(ctx, in)
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.ActionTaskCreate, in, audit.OutcomeSuccess, task.ID, nil)
	return s.engine.AdminView(task)
}

// GetAdminTask returns a task with its derived progress state.
func (s *Service) GetAdminTask(ctx context.Context, id string) (*lifecycle.AdminTask, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	return s.engine.AdminView(task)
}

// ListAdminTasks returns filtered tasks with their derived progress state.
func (s *Service) ListAdminTasks(ctx context.Context, f store.TaskFilter) ([]lifecycle.AdminTask, error) {
	tasks, err := s.store.ListTasks(ctx, f)
	if err != nil {
		return nil, err
	}

	out := make([]lifecycle.AdminTask, 0, len(tasks))
	for i := range tasks {
		view, err := s.engine.AdminView(&tasks[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *view)
	}
	return out, nil
}

// ChangeStatus moves a task along the transition table. Requesting the
// current status persists nothing.
func (s *Service) ChangeStatus(ctx context.Context, id string, requested models.TaskStatus) (*lifecycle.AdminTask, error) {
	if !requested.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownStatus, requested)
	}

	var from models.TaskStatus
	task, err := s.store.UpdateTask(ctx, id, func(t *models.Task) error {
		if err := lifecycle.EnsureTask(t); err != nil {
			return err
		}
		from = t.Status
		noop, err := lifecycle.ValidateTransition(t.Status, requested)
		if err != nil {
			return err
		}
		if noop {
			return store.ErrNoChange
		}
		s.setStatus(t, requested)
		s.stampReached(t)
		return nil
	})
	inputs := map[string]string{"task_id": id, "status": string(requested)}
	if err != nil {
		s.recordRejection(ctx, audit.ActionTaskStatus, inputs, id, err)
		return nil, err
	}

	if from != task.Status {
		s.record(ctx, audit.ActionTaskStatus, inputs, audit.OutcomeSuccess, id,
			map[string]models.TaskStatus{"from": from, "to": task.Status})
	}
	return s.engine.AdminView(task)
}

// ReopenTask moves a COMPLETED or CANCELLED task back to ACTIVE.
func (s *Service) ReopenTask(ctx context.Context, id string) (*lifecycle.AdminTask, error) {
	var from models.TaskStatus
	task, err := s.store.UpdateTask(ctx, id, func(t *models.Task) error {
		if err := lifecycle.EnsureTask(t); err != nil {
			return err
		}
		from = t.Status
		next, err := lifecycle.Reopen(t.Status)
		if err != nil {
			return err
		}
		s.setStatus(t, next)
		s.stampReached(t)
		return nil
	})
	inputs := map[string]string{"task_id": id}
	if err != nil {
		s.recordRejection(ctx, audit.ActionTaskReopen, inputs, id, err)
		return nil, err
	}

	s.record(ctx, audit.ActionTaskReopen, inputs, audit.OutcomeSuccess, id,
		map[string]models.TaskStatus{"from": from, "to": task.Status})
	return s.engine.AdminView(task)
}

// ApproveTask releases a purchased task from PENDING_APPROVAL to PENDING.
func (s *Service) ApproveTask(ctx context.Context, id string) (*lifecycle.AdminTask, error) {
	task, err := s.store.UpdateTask(ctx, id, func(t *models.Task) error {
		if err := lifecycle.EnsureTask(t); err != nil {
			return err
		}
		next, err := lifecycle.Approve(t.Status)
		if err != nil {
			return err
		}
		s.setStatus(t, next)
		return nil
	})
	inputs := map[string]string{"task_id": id}
	if err != nil {
		s.recordRejection(ctx, audit.ActionTaskApprove, inputs, id, err)
		return nil, err
	}

	s.record(ctx, audit.ActionTaskApprove, inputs, audit.OutcomeSuccess, id, nil)
	return s.engine.AdminView(task)
}

// PatchTask applies a general field update. Status is not patchable here.
func (s *Service) PatchTask(ctx context.Context, id string, patch models.TaskPatch) (*lifecycle.AdminTask, error) {
	return s.EditTask(ctx, id, EditRequest{Patch: patch})
}

// EditTask applies a status change and a field patch in one transaction.
// A rejected status change discards the patch too.
func (s *Service) EditTask(ctx context.Context, id string, req EditRequest) (*lifecycle.AdminTask, error) {
	if req.Status == nil && req.Patch.IsEmpty() {
		return nil, ErrEmptyEdit
	}
	if req.Status != nil && !req.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownStatus, *req.Status)
	}
	if err := validatePatch(req.Patch); err != nil {
		return nil, err
	}

	action := audit.ActionTaskPatch
	if req.Status != nil {
		action = audit.ActionTaskEdit
	}

	var from models.TaskStatus
	task, err := s.store.UpdateTask(ctx, id, func(t *models.Task) error {
		if err := lifecycle.EnsureTask(t); err != nil {
			return err
		}
		from = t.Status

		statusNoop := true
		if req.Status != nil {
			noop, err := lifecycle.ValidateTransition(t.Status, *req.Status)
			if err != nil {
				return err
			}
			statusNoop = noop
		}
		if statusNoop && req.Patch.IsEmpty() {
			return store.ErrNoChange
		}

		patch := req.Patch
		if patch.Milestones != nil {
			carried := lifecycle.CarryReached(t.Milestones, *patch.Milestones)
			patch.Milestones = &carried
		}
		patch.ApplyTo(t)
		if !statusNoop {
			s.setStatus(t, *req.Status)
		}
		s.stampReached(t)
		return nil
	})
	if err != nil {
		s.recordRejection(ctx, action, req, id, err)
		return nil, err
	}

	details := map[string]interface{}{"progress_touched": req.Patch.TouchesProgress()}
	if from != task.Status {
		details["from"] = from
		details["to"] = task.Status
	}
	s.record(ctx, action, req, audit.OutcomeSuccess, id, details)
	return s.engine.AdminView(task)
}

// SetProgress sets or clears the admin progress override.
func (s *Service) SetProgress(ctx context.Context, id string, progress *float64) (*lifecycle.AdminTask, error) {
	patch := models.TaskPatch{Progress: progress, ClearProgress: progress == nil}
	return s.PatchTask(ctx, id, patch)
}

// TaskHistory returns the decision records for a task.
func (s *Service) TaskHistory(ctx context.Context, id string) ([]models.PDREntry, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	return s.store.ListPDR(ctx, id, 0)
}

// --- Client Operations ---

// GetClientTask returns the client projection of one of the client's tasks.
// Plans and tasks owned by another client read as not found.
func (s *Service) GetClientTask(ctx context.Context, clientID, id string) (*lifecycle.ClientTask, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil || task.IsPlan() || task.ClientID != clientID {
		return nil, ErrTaskNotFound
	}
	return s.engine.FilterForClient(task)
}

// ListClientTasks returns the client projection of every task a client owns.
func (s *Service) ListClientTasks(ctx context.Context, clientID string) ([]lifecycle.ClientTask, error) {
	tasks, err := s.store.ListTasks(ctx, store.TaskFilter{ClientID: clientID})
	if err != nil {
		return nil, err
	}

	out := make([]lifecycle.ClientTask, 0, len(tasks))
	for i := range tasks {
		view, err := s.engine.FilterForClient(&tasks[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *view)
	}
	return out, nil
}

// --- Plan Operations ---

// CreatePlan lists a new plan in the marketplace.
func (s *Service) CreatePlan(ctx context.Context, in models.NewPlan) (*models.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	mode, err := models.ParseProgressMode(string(in.ProgressMode))
	if err != nil {
		return nil, err
	}
	in.ProgressMode = mode
	if err := validateMilestones(in.Milestones); err != nil {
		return nil, err
	}
	if err := validateAmounts(in.ProgressTarget, in.CreditCost, in.OfferPrice, in.OriginalPrice); err != nil {
		return nil, err
	}

	plan, err := s.store.CreatePlan(ctx, in)
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.ActionPlanCreate, in, audit.OutcomeSuccess, plan.ID, nil)
	return plan, nil
}

// ListPlans returns every plan listing.
func (s *Service) ListPlans(ctx context.Context) ([]models.Task, error) {
	return s.store.ListPlans(ctx)
}

// PurchasePlan turns a plan into a PENDING_APPROVAL task for a client.
func (s *Service) PurchasePlan(ctx context.Context, planID, clientID string) (*lifecycle.ClientTask, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, fmt.Errorf("%w: client id is required", ErrInvalidInput)
	}

	inputs := map[string]string{"plan_id": planID, "client_id": clientID}
	task, err := s.store.PurchasePlan(ctx, planID, clientID)
	if err != nil {
		s.recordRejection(ctx, audit.ActionPlanPurchase, inputs, "", err)
		return nil, err
	}

	s.record(ctx, audit.ActionPlanPurchase, inputs, audit.OutcomeSuccess, task.ID, map[string]string{"plan_id": planID})
	return s.engine.FilterForClient(task)
}

// --- helpers ---

// setStatus applies a validated status and keeps closed_at in step with it.
func (s *Service) setStatus(t *models.Task, next models.TaskStatus) {
	switch {
	case next.IsTerminal() && !t.Status.IsTerminal():
		now := s.engine.Now().UTC()
		t.ClosedAt = &now
	case !next.IsTerminal():
		t.ClosedAt = nil
	}
	t.Status = next
}

// stampReached marks milestones the task's current progress has passed.
// Tasks that have not started yet are left alone.
func (s *Service) stampReached(t *models.Task) {
	if t.Status == models.TaskStatusPending || t.Status == models.TaskStatusPendingApproval {
		return
	}
	progress, err := s.engine.ComputeProgress(t)
	if err != nil {
		return
	}
	now := s.engine.Now().UTC()
	for i := range t.Milestones {
		m := &t.Milestones[i]
		if m.ReachedAt == nil && m.Percentage <= progress {
			at := now
			m.ReachedAt = &at
		}
	}
}

func (s *Service) record(ctx context.Context, action string, inputs interface{}, outcome, taskID string, details interface{}) {
	if s.pdr == nil {
		return
	}
	s.pdr.Record(ctx, action, inputs, outcome, taskID, details)
}

// recordRejection audits refused lifecycle decisions. Lookup failures and
// storage errors are not decisions and are left out.
func (s *Service) recordRejection(ctx context.Context, action string, inputs interface{}, taskID string, err error) {
	var ite *lifecycle.InvalidTransitionError
	switch {
	case errors.As(err, &ite):
		s.record(ctx, action, inputs, audit.OutcomeRejected, taskID,
			map[string]models.TaskStatus{"current": ite.Current, "requested": ite.Requested})
	case errors.Is(err, lifecycle.ErrNotTerminal),
		errors.Is(err, lifecycle.ErrNotAwaitingApproval),
		errors.Is(err, lifecycle.ErrNotATask),
		errors.Is(err, store.ErrNotAPlan):
		s.record(ctx, action, inputs, audit.OutcomeRejected, taskID, err)
	}
}

func validatePatch(p models.TaskPatch) error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title must not be empty", ErrInvalidInput)
	}
	if p.Quantity != nil && *p.Quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalidInput)
	}
	if err := validateAmounts(p.ProgressTarget, p.ProgressAchieved, p.Progress,
		p.CreditCost, p.CreditsUsed, p.OfferPrice, p.OriginalPrice); err != nil {
		return err
	}
	if p.Milestones != nil {
		return validateMilestones(*p.Milestones)
	}
	return nil
}

func validateMilestones(ms []models.Milestone) error {
	for _, m := range ms {
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("%w: milestone name is required", ErrInvalidInput)
		}
		if m.Percentage < 0 || math.IsNaN(m.Percentage) || math.IsInf(m.Percentage, 0) {
			return fmt.Errorf("%w: milestone %q percentage must be a non-negative number", ErrInvalidInput, m.Name)
		}
	}
	return nil
}

func validateAmounts(values ...*float64) error {
	for _, v := range values {
		if v == nil {
			continue
		}
		if *v < 0 || math.IsNaN(*v) || math.IsInf(*v, 0) {
			return fmt.Errorf("%w: amounts must be non-negative numbers", ErrInvalidInput)
		}
	}
	return nil
}
