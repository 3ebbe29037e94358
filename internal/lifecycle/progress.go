package lifecycle

import (
	"math"
	"time"

	"github.com/fentz26/planboard/internal/models"
)

// Clock supplies the current instant to AUTO-mode progress.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant. Useful for tests and replays.
type FixedClock time.Time

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return time.Time(c) }

// Engine evaluates tasks against an injected clock.
type Engine struct {
	clock Clock
}

// NewEngine creates an engine. A nil clock means the wall clock.
func NewEngine(clock Clock) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Engine{clock: clock}
}

// Now returns the engine's notion of the current instant.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

// ComputeProgress returns the effective progress percentage of a task.
// The value is not clamped and may exceed 100.
func (e *Engine) ComputeProgress(t *models.Task) (float64, error) {
	if err := EnsureTask(t); err != nil {
		return 0, err
	}
	return effectiveProgress(t, e.clock.Now()), nil
}

func effectiveProgress(t *models.Task, now time.Time) float64 {
	if t.Progress != nil {
		return *t.Progress
	}
	switch t.ProgressMode {
	case models.ProgressModeManual:
		return ManualProgress(t.ProgressTarget, t.ProgressAchieved)
	case models.ProgressModeAuto:
		// Closed tasks stop the clock at the moment they closed.
		ref := now
		if t.ClosedAt != nil {
			ref = *t.ClosedAt
		}
		return AutoProgress(t.StartDate, t.EndDate, ref)
	default:
		return 0
	}
}

// ManualProgress is achieved/target as a percentage. A missing or non-positive
// target yields 0.
func ManualProgress(target, achieved *float64) float64 {
	if target == nil || *target <= 0 {
		return 0
	}
	if achieved == nil {
		return 0
	}
	return *achieved * 100 / *target
}

// AutoProgress is the elapsed share of [start, end] at now, as a percentage.
// It is 0 before start and keeps growing past 100 after end. Missing dates
// yield 0. A window with end <= start reads 0 before start and 100 after.
func AutoProgress(start, end *time.Time, now time.Time) float64 {
	if start == nil || end == nil {
		return 0
	}
	if now.Before(*start) {
		return 0
	}
	span := end.Sub(*start)
	if span <= 0 {
		return 100
	}
	return float64(now.Sub(*start)) * 100 / float64(span)
}

// IsOverachieving reports whether progress is above 100.
func IsOverachieving(progress float64) bool {
	return progress > 100
}

// DisplayPercent rounds progress to the nearest integer for display.
func DisplayPercent(progress float64) int {
	return int(math.Round(progress))
}

// BarWidth is the visual fill of a progress bar: progress clamped to [0, 100].
// Only renderers use it; the raw percentage is never clamped.
func BarWidth(progress float64) float64 {
	return math.Max(0, math.Min(100, progress))
}
