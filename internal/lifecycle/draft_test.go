package lifecycle

import (
	"testing"

	"github.com/fentz26/planboard/internal/models"
)

func TestDraft_NoChanges(t *testing.T) {
	d := NewDraft(commercialTask())
	if d.Dirty() {
		t.Errorf("fresh draft is dirty: %+v", d.Patch())
	}
	if d.StatusChange() != nil {
		t.Error("fresh draft reports a status change")
	}
}

func TestDraft_MinimalPatch(t *testing.T) {
	d := NewDraft(commercialTask())
	d.Current.Title = "Logo design v2"
	d.Current.ShowProgressDetails = models.Bool(true)
	d.Current.ProgressAchieved = models.Float(7)
	d.Current.Status = models.TaskStatusCompleted

	p := d.Patch()
	if p.Title == nil || *p.Title != "Logo design v2" {
		t.Error("title change missing")
	}
	if p.ShowProgressDetails == nil || !*p.ShowProgressDetails {
		t.Error("flag change missing")
	}
	if p.ProgressAchieved == nil || *p.ProgressAchieved != 7 {
		t.Error("counter change missing")
	}
	if p.Description != nil || p.Quantity != nil || p.CreditCost != nil || p.Milestones != nil {
		t.Errorf("patch carries untouched fields: %+v", p)
	}
	if s := d.StatusChange(); s == nil || *s != models.TaskStatusCompleted {
		t.Error("status change missing")
	}

	// Editing the draft must not leak into the server copy.
	if d.Original.Title != "Logo design" || *d.Original.ProgressAchieved != 4 {
		t.Error("draft edits reached the original")
	}
}

func TestDiff_ProgressOverride(t *testing.T) {
	orig := commercialTask()
	orig.Progress = models.Float(50)

	cleared := orig.Clone()
	cleared.Progress = nil
	if p := Diff(orig, cleared); !p.ClearProgress || p.Progress != nil {
		t.Errorf("removing the override should clear it: %+v", p)
	}

	changed := orig.Clone()
	changed.Progress = models.Float(75)
	if p := Diff(orig, changed); p.ClearProgress || p.Progress == nil || *p.Progress != 75 {
		t.Errorf("changing the override: %+v", p)
	}
}

func TestDiff_Milestones(t *testing.T) {
	orig := commercialTask()
	draft := orig.Clone()
	draft.Milestones = append(draft.Milestones, models.Milestone{Name: "D", Percentage: 100})

	p := Diff(orig, draft)
	if p.Milestones == nil || len(*p.Milestones) != 4 {
		t.Fatalf("milestone set change missing: %+v", p.Milestones)
	}

	draft.Milestones = nil
	p = Diff(orig, draft)
	if p.Milestones == nil || len(*p.Milestones) != 0 {
		t.Errorf("clearing milestones should produce an empty set, got %+v", p.Milestones)
	}
}
