package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/fentz26/planboard/internal/models"
)

var (
	day0  = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day10 = day0.Add(10 * 24 * time.Hour)
)

func engineAt(t time.Time) *Engine {
	return NewEngine(FixedClock(t))
}

func TestComputeProgress_OverrideWins(t *testing.T) {
	tasks := []*models.Task{
		{ProgressMode: models.ProgressModeManual, ProgressTarget: models.Float(10), ProgressAchieved: models.Float(9), Progress: models.Float(33)},
		{ProgressMode: models.ProgressModeAuto, StartDate: &day0, EndDate: &day10, Progress: models.Float(33)},
		{ProgressMode: models.ProgressModeAuto, Progress: models.Float(33)},
	}
	e := engineAt(day0.Add(5 * 24 * time.Hour))
	for i, task := range tasks {
		got, err := e.ComputeProgress(task)
		if err != nil {
			t.Fatalf("task %d: %v", i, err)
		}
		if got != 33 {
			t.Errorf("task %d: progress = %v, want override 33", i, got)
		}
	}
}

func TestComputeProgress_Manual(t *testing.T) {
	e := engineAt(day0)
	tests := []struct {
		name     string
		target   *float64
		achieved *float64
		want     float64
	}{
		{"half", models.Float(200), models.Float(100), 50},
		{"overachieving", models.Float(100), models.Float(120), 120},
		{"zero target", models.Float(0), models.Float(5), 0},
		{"negative target", models.Float(-3), models.Float(5), 0},
		{"no target", nil, models.Float(5), 0},
		{"no achieved", models.Float(10), nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &models.Task{ProgressMode: models.ProgressModeManual, ProgressTarget: tt.target, ProgressAchieved: tt.achieved}
			got, err := e.ComputeProgress(task)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("progress = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeProgress_Auto(t *testing.T) {
	task := &models.Task{ProgressMode: models.ProgressModeAuto, StartDate: &day0, EndDate: &day10}

	tests := []struct {
		at   time.Time
		want float64
	}{
		{day0.Add(-time.Hour), 0},
		{day0, 0},
		{day0.Add(24 * time.Hour), 10},
		{day10, 100},
		{day10.Add(5 * 24 * time.Hour), 150},
	}
	for _, tt := range tests {
		got, err := engineAt(tt.at).ComputeProgress(task)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("at %s progress = %v, want %v", tt.at, got, tt.want)
		}
	}
}

func TestComputeProgress_AutoMonotonic(t *testing.T) {
	task := &models.Task{ProgressMode: models.ProgressModeAuto, StartDate: &day0, EndDate: &day10}
	prev := -1.0
	for h := 0; h <= 24*12; h += 7 {
		got, _ := engineAt(day0.Add(time.Duration(h) * time.Hour)).ComputeProgress(task)
		if got < prev {
			t.Fatalf("progress decreased at hour %d: %v < %v", h, got, prev)
		}
		prev = got
	}
	if prev <= 100 {
		t.Errorf("progress past end should exceed 100, got %v", prev)
	}
}

func TestComputeProgress_AutoMissingDates(t *testing.T) {
	e := engineAt(day10)
	for _, task := range []*models.Task{
		{ProgressMode: models.ProgressModeAuto},
		{ProgressMode: models.ProgressModeAuto, StartDate: &day0},
		{ProgressMode: models.ProgressModeAuto, EndDate: &day10},
	} {
		got, err := e.ComputeProgress(task)
		if err != nil || got != 0 {
			t.Errorf("missing dates: progress = %v, err = %v; want 0", got, err)
		}
	}
}

func TestComputeProgress_AutoDegenerateWindow(t *testing.T) {
	task := &models.Task{ProgressMode: models.ProgressModeAuto, StartDate: &day10, EndDate: &day0}
	if got, _ := engineAt(day0).ComputeProgress(task); got != 0 {
		t.Errorf("before start = %v, want 0", got)
	}
	if got, _ := engineAt(day10).ComputeProgress(task); got != 100 {
		t.Errorf("after start = %v, want 100", got)
	}
}

func TestComputeProgress_AutoFreezesWhenClosed(t *testing.T) {
	closed := day0.Add(4 * 24 * time.Hour)
	task := &models.Task{
		Status:       models.TaskStatusCompleted,
		ProgressMode: models.ProgressModeAuto,
		StartDate:    &day0,
		EndDate:      &day10,
		ClosedAt:     &closed,
	}
	got, _ := engineAt(day10.Add(30 * 24 * time.Hour)).ComputeProgress(task)
	if got != 40 {
		t.Errorf("closed task progress = %v, want 40", got)
	}
}

func TestComputeProgress_RejectsPlans(t *testing.T) {
	plan := &models.Task{IsListedInPlans: true, Progress: models.Float(50)}
	got, err := engineAt(day0).ComputeProgress(plan)
	if !errors.Is(err, ErrNotATask) {
		t.Fatalf("error = %v, want ErrNotATask", err)
	}
	if got != 0 {
		t.Errorf("plan produced output %v", got)
	}
}

func TestComputeProgress_Idempotent(t *testing.T) {
	task := &models.Task{ProgressMode: models.ProgressModeAuto, StartDate: &day0, EndDate: &day10}
	e := engineAt(day0.Add(36 * time.Hour))
	a, _ := e.ComputeProgress(task)
	b, _ := e.ComputeProgress(task)
	if a != b {
		t.Errorf("repeated computation differs: %v vs %v", a, b)
	}
}

func TestDisplayHelpers(t *testing.T) {
	if DisplayPercent(66.5) != 67 || DisplayPercent(66.4) != 66 {
		t.Error("DisplayPercent should round to nearest")
	}
	if !IsOverachieving(100.01) || IsOverachieving(100) {
		t.Error("overachieving means strictly above 100")
	}
	if BarWidth(150) != 100 || BarWidth(-5) != 0 || BarWidth(42.5) != 42.5 {
		t.Error("BarWidth should clamp to [0, 100]")
	}
}
