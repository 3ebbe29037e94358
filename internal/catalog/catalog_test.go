package catalog

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fentz26/planboard/internal/models"
)

const sample = `plans:
  - title: SEO Starter
    description: Monthly keyword work
    progress_mode: manual
    progress_target: 20
    credit_cost: 150
    milestones:
      - name: Audit
        percentage: 25
        color: "#3b82f6"
      - name: Report
        percentage: 100
  - title: Landing Page
    quantity: 1
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(c.Plans) != 2 {
		t.Fatalf("Expected 2 plans, got %d", len(c.Plans))
	}

	seo := c.Plans[0]
	if seo.ProgressMode != models.ProgressModeManual {
		t.Errorf("mode = %s, want MANUAL", seo.ProgressMode)
	}
	if seo.ProgressTarget == nil || *seo.ProgressTarget != 20 {
		t.Errorf("progress_target = %v, want 20", seo.ProgressTarget)
	}
	if len(seo.Milestones) != 2 || seo.Milestones[0].Color != "#3b82f6" {
		t.Errorf("milestones = %+v", seo.Milestones)
	}
	if c.Plans[1].ProgressMode != models.ProgressModeAuto {
		t.Errorf("missing mode should default to AUTO, got %s", c.Plans[1].ProgressMode)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing title", "plans:\n  - description: x\n", "title is required"},
		{"duplicate", "plans:\n  - title: A\n  - title: a\n", "listed twice"},
		{"bad mode", "plans:\n  - title: A\n    progress_mode: hybrid\n", "unknown progress mode"},
		{"unnamed milestone", "plans:\n  - title: A\n    milestones:\n      - percentage: 10\n", "milestone name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse error = %v, want containing %q", err, tt.want)
			}
		})
	}

	_, err := Parse([]byte("plans:\n  - title: A\n    progress_mode: hybrid\n"))
	if !errors.Is(err, models.ErrUnknownProgressMode) {
		t.Errorf("bad mode should wrap ErrUnknownProgressMode, got %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export", "plans.yaml")

	stored := []models.Task{{
		ID:              "plan-1",
		Title:           "Retainer",
		ProgressMode:    models.ProgressModeAuto,
		CreditCost:      models.Float(99),
		IsListedInPlans: true,
		Milestones:      []models.Milestone{{ID: "m-1", Name: "Kickoff", Percentage: 10}},
	}}

	if err := Save(path, FromPlans(stored)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(c.Plans) != 1 || c.Plans[0].Title != "Retainer" {
		t.Fatalf("unexpected catalog: %+v", c.Plans)
	}
	if c.Plans[0].Milestones[0].ID != "" {
		t.Error("exported milestones should not carry IDs")
	}
	if c.Plans[0].CreditCost == nil || *c.Plans[0].CreditCost != 99 {
		t.Errorf("credit_cost = %v, want 99", c.Plans[0].CreditCost)
	}
}
