// Package models defines the core domain types for planboard.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	// TaskStatusPendingApproval is produced only by a plan purchase.
	TaskStatusPendingApproval TaskStatus = "PENDING_APPROVAL"
	TaskStatusPending         TaskStatus = "PENDING"
	TaskStatusActive          TaskStatus = "ACTIVE"
	TaskStatusCompleted       TaskStatus = "COMPLETED"
	TaskStatusCancelled       TaskStatus = "CANCELLED"
)

// ErrUnknownStatus is returned when a status string is not one of the known values.
var ErrUnknownStatus = errors.New("unknown task status")

// ErrUnknownProgressMode is returned when a progress mode string is not AUTO or MANUAL.
var ErrUnknownProgressMode = errors.New("unknown progress mode")

// AllStatuses lists every task status in lifecycle order.
func AllStatuses() []TaskStatus {
	return []TaskStatus{
		TaskStatusPendingApproval,
		TaskStatusPending,
		TaskStatusActive,
		TaskStatusCompleted,
		TaskStatusCancelled,
	}
}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPendingApproval, TaskStatusPending, TaskStatusActive,
		TaskStatusCompleted, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s is COMPLETED or CANCELLED.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusCancelled
}

// ParseTaskStatus converts a string into a TaskStatus. Matching is case-insensitive.
func ParseTaskStatus(v string) (TaskStatus, error) {
	s := TaskStatus(strings.ToUpper(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, v)
	}
	return s, nil
}

// ProgressMode selects how a task's completion percentage is computed.
type ProgressMode string

const (
	ProgressModeAuto   ProgressMode = "AUTO"
	ProgressModeManual ProgressMode = "MANUAL"
)

// Valid reports whether m is a known mode.
func (m ProgressMode) Valid() bool {
	return m == ProgressModeAuto || m == ProgressModeManual
}

// ParseProgressMode converts a string into a ProgressMode. An empty string yields AUTO.
func ParseProgressMode(v string) (ProgressMode, error) {
	v = strings.ToUpper(strings.TrimSpace(v))
	if v == "" {
		return ProgressModeAuto, nil
	}
	m := ProgressMode(v)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownProgressMode, v)
	}
	return m, nil
}

// Milestone is a named threshold on a task's progress timeline.
type Milestone struct {
	ID         string     `json:"id" yaml:"id,omitempty"`
	Name       string     `json:"name" yaml:"name"`
	Percentage float64    `json:"percentage" yaml:"percentage"`
	Color      string     `json:"color,omitempty" yaml:"color,omitempty"`
	ReachedAt  *time.Time `json:"reached_at,omitempty" yaml:"reached_at,omitempty"`
}

// Task is a unit of work assigned to a client. When IsListedInPlans is set the
// record is a Plan: a sellable template that never enters the task lifecycle.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ClientID    string `json:"client_id,omitempty"`
	PlanID      string `json:"plan_id,omitempty"`

	Status       TaskStatus   `json:"status,omitempty"`
	ProgressMode ProgressMode `json:"progress_mode"`

	StartDate        *time.Time `json:"start_date,omitempty"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	ProgressTarget   *float64   `json:"progress_target,omitempty"`
	ProgressAchieved *float64   `json:"progress_achieved,omitempty"`
	Progress         *float64   `json:"progress,omitempty"`

	Milestones []Milestone `json:"milestones"`

	ShowQuantityToClient *bool `json:"show_quantity_to_client,omitempty"`
	ShowCreditsToClient  *bool `json:"show_credits_to_client,omitempty"`
	ShowProgressDetails  *bool `json:"show_progress_details,omitempty"`

	Quantity      *int     `json:"quantity,omitempty"`
	CreditCost    *float64 `json:"credit_cost,omitempty"`
	CreditsUsed   *float64 `json:"credits_used,omitempty"`
	OfferPrice    *float64 `json:"offer_price,omitempty"`
	OriginalPrice *float64 `json:"original_price,omitempty"`
	InternalNotes string   `json:"internal_notes,omitempty"`

	IsListedInPlans bool `json:"is_listed_in_plans"`

	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsPlan reports whether the record is a marketplace plan rather than a task.
func (t *Task) IsPlan() bool {
	return t != nil && t.IsListedInPlans
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.StartDate = cloneTime(t.StartDate)
	c.EndDate = cloneTime(t.EndDate)
	c.ClosedAt = cloneTime(t.ClosedAt)
	c.ProgressTarget = cloneFloat(t.ProgressTarget)
	c.ProgressAchieved = cloneFloat(t.ProgressAchieved)
	c.Progress = cloneFloat(t.Progress)
	c.ShowQuantityToClient = cloneBool(t.ShowQuantityToClient)
	c.ShowCreditsToClient = cloneBool(t.ShowCreditsToClient)
	c.ShowProgressDetails = cloneBool(t.ShowProgressDetails)
	c.CreditCost = cloneFloat(t.CreditCost)
	c.CreditsUsed = cloneFloat(t.CreditsUsed)
	c.OfferPrice = cloneFloat(t.OfferPrice)
	c.OriginalPrice = cloneFloat(t.OriginalPrice)
	if t.Quantity != nil {
		q := *t.Quantity
		c.Quantity = &q
	}
	c.Milestones = CloneMilestones(t.Milestones)
	return &c
}

// CloneMilestones deep-copies a milestone slice.
func CloneMilestones(ms []Milestone) []Milestone {
	if ms == nil {
		return nil
	}
	out := make([]Milestone, len(ms))
	for i, m := range ms {
		out[i] = m
		out[i].ReachedAt = cloneTime(m.ReachedAt)
	}
	return out
}

// NewTask holds the inputs for direct admin task creation.
type NewTask struct {
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	ClientID         string       `json:"client_id"`
	ProgressMode     ProgressMode `json:"progress_mode"`
	StartDate        *time.Time   `json:"start_date,omitempty"`
	EndDate          *time.Time   `json:"end_date,omitempty"`
	ProgressTarget   *float64     `json:"progress_target,omitempty"`
	ProgressAchieved *float64     `json:"progress_achieved,omitempty"`
	Milestones       []Milestone  `json:"milestones,omitempty"`
	Quantity         *int         `json:"quantity,omitempty"`
	CreditCost       *float64     `json:"credit_cost,omitempty"`
	OfferPrice       *float64     `json:"offer_price,omitempty"`
	OriginalPrice    *float64     `json:"original_price,omitempty"`
	InternalNotes    string       `json:"internal_notes,omitempty"`
}

// NewPlan holds the inputs for a marketplace plan listing.
type NewPlan struct {
	Title          string       `json:"title" yaml:"title"`
	Description    string       `json:"description" yaml:"description"`
	ProgressMode   ProgressMode `json:"progress_mode" yaml:"progress_mode"`
	ProgressTarget *float64     `json:"progress_target,omitempty" yaml:"progress_target,omitempty"`
	Milestones     []Milestone  `json:"milestones,omitempty" yaml:"milestones,omitempty"`
	Quantity       *int         `json:"quantity,omitempty" yaml:"quantity,omitempty"`
	CreditCost     *float64     `json:"credit_cost,omitempty" yaml:"credit_cost,omitempty"`
	OfferPrice     *float64     `json:"offer_price,omitempty" yaml:"offer_price,omitempty"`
	OriginalPrice  *float64     `json:"original_price,omitempty" yaml:"original_price,omitempty"`
}

// PDREntry represents a Process Decision Record for audit.
type PDREntry struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	InputsHash string    `json:"inputs_hash"`
	Outcome    string    `json:"outcome"`
	TaskID     string    `json:"task_id,omitempty"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Time returns a pointer to v.
func Time(v time.Time) *time.Time { return &v }

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}
