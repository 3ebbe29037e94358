package lifecycle

import (
	"time"

	"github.com/fentz26/planboard/internal/models"
)

// ProgressView is the derived progress state shown on every read path.
type ProgressView struct {
	Progress        float64           `json:"progress"`
	DisplayProgress int               `json:"display_progress"`
	Overachieving   bool              `json:"overachieving"`
	ActiveMilestone *models.Milestone `json:"active_milestone"`
	NextMilestone   *models.Milestone `json:"next_milestone"`
}

// AdminTask is the full task record plus its derived progress state.
type AdminTask struct {
	models.Task
	Computed           ProgressView        `json:"computed"`
	AllowedTransitions []models.TaskStatus `json:"allowed_transitions"`
	CanReopen          bool                `json:"can_reopen"`
}

// ClientTask is the projection of a task a purchasing client may see.
// It never carries internal notes or the plan flag.
type ClientTask struct {
	ID           string              `json:"id"`
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	Status       models.TaskStatus   `json:"status"`
	ProgressMode models.ProgressMode `json:"progress_mode"`
	StartDate    *time.Time          `json:"start_date,omitempty"`
	EndDate      *time.Time          `json:"end_date,omitempty"`

	ProgressView
	Milestones []models.Milestone `json:"milestones"`

	Quantity         *int     `json:"quantity,omitempty"`
	CreditCost       *float64 `json:"credit_cost,omitempty"`
	CreditsUsed      *float64 `json:"credits_used,omitempty"`
	OfferPrice       *float64 `json:"offer_price,omitempty"`
	OriginalPrice    *float64 `json:"original_price,omitempty"`
	ProgressTarget   *float64 `json:"progress_target,omitempty"`
	ProgressAchieved *float64 `json:"progress_achieved,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Evaluate computes the derived progress state of a task.
func (e *Engine) Evaluate(t *models.Task) (ProgressView, error) {
	if err := EnsureTask(t); err != nil {
		return ProgressView{}, err
	}
	p := effectiveProgress(t, e.clock.Now())
	res := Resolve(t.Milestones, p)
	return ProgressView{
		Progress:        p,
		DisplayProgress: DisplayPercent(p),
		Overachieving:   IsOverachieving(p),
		ActiveMilestone: res.Active,
		NextMilestone:   res.Next,
	}, nil
}

// AdminView returns the full record with its derived state.
func (e *Engine) AdminView(t *models.Task) (*AdminTask, error) {
	view, err := e.Evaluate(t)
	if err != nil {
		return nil, err
	}
	return &AdminTask{
		Task:               *t.Clone(),
		Computed:           view,
		AllowedTransitions: AllowedTargets(t.Status),
		CanReopen:          t.Status.IsTerminal(),
	}, nil
}

// FilterForClient projects a task down to what its client may observe.
//
//   - quantity only when show_quantity_to_client is true
//   - credits and prices unless show_credits_to_client is explicitly false
//   - raw progress counters only when show_progress_details is true
//   - the computed percentage and milestone timeline always
//   - internal notes never
func (e *Engine) FilterForClient(t *models.Task) (*ClientTask, error) {
	view, err := e.Evaluate(t)
	if err != nil {
		return nil, err
	}

	src := t.Clone()
	ct := &ClientTask{
		ID:           src.ID,
		Title:        src.Title,
		Description:  src.Description,
		Status:       src.Status,
		ProgressMode: src.ProgressMode,
		StartDate:    src.StartDate,
		EndDate:      src.EndDate,
		ProgressView: view,
		Milestones:   SortMilestones(src.Milestones),
		CreatedAt:    src.CreatedAt,
		UpdatedAt:    src.UpdatedAt,
	}
	if ct.Milestones == nil {
		ct.Milestones = []models.Milestone{}
	}

	if isTrue(src.ShowQuantityToClient) {
		ct.Quantity = src.Quantity
	}
	if !isFalse(src.ShowCreditsToClient) {
		ct.CreditCost = src.CreditCost
		ct.CreditsUsed = src.CreditsUsed
		ct.OfferPrice = src.OfferPrice
		ct.OriginalPrice = src.OriginalPrice
	}
	if isTrue(src.ShowProgressDetails) {
		ct.ProgressTarget = src.ProgressTarget
		ct.ProgressAchieved = src.ProgressAchieved
	}
	return ct, nil
}

func isTrue(b *bool) bool  { return b != nil && *b }
func isFalse(b *bool) bool { return b != nil && !*b }
