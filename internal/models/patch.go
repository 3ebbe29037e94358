package models

import "time"

// TaskPatch is a general field update. Nil fields are left untouched.
// Status and progress mode are not patchable here: status changes go through
// the lifecycle validator and the mode is fixed at creation.
type TaskPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`

	StartDate        *time.Time `json:"start_date,omitempty"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	ProgressTarget   *float64   `json:"progress_target,omitempty"`
	ProgressAchieved *float64   `json:"progress_achieved,omitempty"`

	// Progress sets the explicit admin override. ClearProgress removes it and
	// wins over Progress when both are set.
	Progress      *float64 `json:"progress,omitempty"`
	ClearProgress bool     `json:"clear_progress,omitempty"`

	ShowQuantityToClient *bool `json:"show_quantity_to_client,omitempty"`
	ShowCreditsToClient  *bool `json:"show_credits_to_client,omitempty"`
	ShowProgressDetails  *bool `json:"show_progress_details,omitempty"`

	Quantity      *int     `json:"quantity,omitempty"`
	CreditCost    *float64 `json:"credit_cost,omitempty"`
	CreditsUsed   *float64 `json:"credits_used,omitempty"`
	OfferPrice    *float64 `json:"offer_price,omitempty"`
	OriginalPrice *float64 `json:"original_price,omitempty"`
	InternalNotes *string  `json:"internal_notes,omitempty"`

	// Milestones replaces the whole milestone set when non-nil.
	Milestones *[]Milestone `json:"milestones,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil &&
		p.StartDate == nil && p.EndDate == nil &&
		p.ProgressTarget == nil && p.ProgressAchieved == nil &&
		p.Progress == nil && !p.ClearProgress &&
		p.ShowQuantityToClient == nil && p.ShowCreditsToClient == nil && p.ShowProgressDetails == nil &&
		p.Quantity == nil && p.CreditCost == nil && p.CreditsUsed == nil &&
		p.OfferPrice == nil && p.OriginalPrice == nil && p.InternalNotes == nil &&
		p.Milestones == nil
}

// TouchesProgress reports whether applying the patch can change effective progress.
func (p TaskPatch) TouchesProgress() bool {
	return p.StartDate != nil || p.EndDate != nil ||
		p.ProgressTarget != nil || p.ProgressAchieved != nil ||
		p.Progress != nil || p.ClearProgress || p.Milestones != nil
}

// ApplyTo writes the patch onto t in place.
func (p TaskPatch) ApplyTo(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.StartDate != nil {
		t.StartDate = cloneTime(p.StartDate)
	}
	if p.EndDate != nil {
		t.EndDate = cloneTime(p.EndDate)
	}
	if p.ProgressTarget != nil {
		t.ProgressTarget = cloneFloat(p.ProgressTarget)
	}
	if p.ProgressAchieved != nil {
		t.ProgressAchieved = cloneFloat(p.ProgressAchieved)
	}
	if p.Progress != nil {
		t.Progress = cloneFloat(p.Progress)
	}
	if p.ClearProgress {
		t.Progress = nil
	}
	if p.ShowQuantityToClient != nil {
		t.ShowQuantityToClient = cloneBool(p.ShowQuantityToClient)
	}
	if p.ShowCreditsToClient != nil {
		t.ShowCreditsToClient = cloneBool(p.ShowCreditsToClient)
	}
	if p.ShowProgressDetails != nil {
		t.ShowProgressDetails = cloneBool(p.ShowProgressDetails)
	}
	if p.Quantity != nil {
		q := *p.Quantity
		t.Quantity = &q
	}
	if p.CreditCost != nil {
		t.CreditCost = cloneFloat(p.CreditCost)
	}
	if p.CreditsUsed != nil {
		t.CreditsUsed = cloneFloat(p.CreditsUsed)
	}
	if p.OfferPrice != nil {
		t.OfferPrice = cloneFloat(p.OfferPrice)
	}
	if p.OriginalPrice != nil {
		t.OriginalPrice = cloneFloat(p.OriginalPrice)
	}
	if p.InternalNotes != nil {
		t.InternalNotes = *p.InternalNotes
	}
	if p.Milestones != nil {
		t.Milestones = CloneMilestones(*p.Milestones)
	}
}
