package lifecycle

import (
	"reflect"
	"time"

	"github.com/fentz26/planboard/internal/models"
)

// Draft pairs the last known server copy of a task with a locally edited copy.
type Draft struct {
	Original models.Task
	Current  models.Task
}

// NewDraft starts a draft from a server snapshot.
func NewDraft(t *models.Task) *Draft {
	return &Draft{
		Original: *t.Clone(),
		Current:  *t.Clone(),
	}
}

// Patch returns the minimal field patch turning Original into Current.
func (d *Draft) Patch() models.TaskPatch {
	return Diff(&d.Original, &d.Current)
}

// StatusChange returns the requested status, or nil when it was not edited.
func (d *Draft) StatusChange() *models.TaskStatus {
	if d.Current.Status == d.Original.Status {
		return nil
	}
	s := d.Current.Status
	return &s
}

// Dirty reports whether the draft differs from the server copy.
func (d *Draft) Dirty() bool {
	return d.StatusChange() != nil || !d.Patch().IsEmpty()
}

// Diff builds the minimal patch that turns original into draft. Status and
// progress mode are never part of the patch.
func Diff(original, draft *models.Task) models.TaskPatch {
	var p models.TaskPatch

	if original.Title != draft.Title {
		v := draft.Title
		p.Title = &v
	}
	if original.Description != draft.Description {
		v := draft.Description
		p.Description = &v
	}
	if original.InternalNotes != draft.InternalNotes {
		v := draft.InternalNotes
		p.InternalNotes = &v
	}

	p.StartDate = diffTime(original.StartDate, draft.StartDate)
	p.EndDate = diffTime(original.EndDate, draft.EndDate)
	p.ProgressTarget = diffFloat(original.ProgressTarget, draft.ProgressTarget)
	p.ProgressAchieved = diffFloat(original.ProgressAchieved, draft.ProgressAchieved)
	p.CreditCost = diffFloat(original.CreditCost, draft.CreditCost)
	p.CreditsUsed = diffFloat(original.CreditsUsed, draft.CreditsUsed)
	p.OfferPrice = diffFloat(original.OfferPrice, draft.OfferPrice)
	p.OriginalPrice = diffFloat(original.OriginalPrice, draft.OriginalPrice)

	if original.Progress != nil && draft.Progress == nil {
		p.ClearProgress = true
	} else {
		p.Progress = diffFloat(original.Progress, draft.Progress)
	}

	p.ShowQuantityToClient = diffBool(original.ShowQuantityToClient, draft.ShowQuantityToClient)
	p.ShowCreditsToClient = diffBool(original.ShowCreditsToClient, draft.ShowCreditsToClient)
	p.ShowProgressDetails = diffBool(original.ShowProgressDetails, draft.ShowProgressDetails)

	if draft.Quantity != nil && (original.Quantity == nil || *original.Quantity != *draft.Quantity) {
		q := *draft.Quantity
		p.Quantity = &q
	}

	if !reflect.DeepEqual(normalizeMilestones(original.Milestones), normalizeMilestones(draft.Milestones)) {
		ms := models.CloneMilestones(draft.Milestones)
		if ms == nil {
			ms = []models.Milestone{}
		}
		p.Milestones = &ms
	}
	return p
}

// diffTime and friends return the draft value when it was set and differs.
// Unsetting a field is not expressible in a patch and is ignored.
func diffTime(a, b *time.Time) *time.Time {
	if b == nil || (a != nil && a.Equal(*b)) {
		return nil
	}
	v := *b
	return &v
}

func diffFloat(a, b *float64) *float64 {
	if b == nil || (a != nil && *a == *b) {
		return nil
	}
	v := *b
	return &v
}

func diffBool(a, b *bool) *bool {
	if b == nil || (a != nil && *a == *b) {
		return nil
	}
	v := *b
	return &v
}

func normalizeMilestones(ms []models.Milestone) []models.Milestone {
	if len(ms) == 0 {
		return nil
	}
	out := models.CloneMilestones(ms)
	for i := range out {
		if out[i].ReachedAt != nil {
			t := out[i].ReachedAt.UTC()
			out[i].ReachedAt = &t
		}
	}
	return out
}
