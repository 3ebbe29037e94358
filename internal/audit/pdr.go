// Package audit provides PDR (Process Decision Record) writing for planboard.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/fentz26/planboard/internal/models"
)

// Actions recorded by the control plane and the milestone sweeper.
const (
	ActionTaskCreate       = "task.create"
	ActionPlanCreate       = "plan.create"
	ActionPlanPurchase     = "plan.purchase"
	ActionTaskApprove      = "task.approve"
	ActionTaskStatus       = "task.status"
	ActionTaskReopen       = "task.reopen"
	ActionTaskPatch        = "task.patch"
	ActionTaskEdit         = "task.edit"
	ActionMilestoneReached = "milestone.reached"
)

// Outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
)

// Sink persists PDR entries. *store.Store satisfies it.
type Sink interface {
	WritePDR(ctx context.Context, action, inputsHash, outcome, taskID, details string) (*models.PDREntry, error)
}

// PDRWriter writes Process Decision Records for audit trails.
type PDRWriter struct {
	sink Sink
}

// NewPDRWriter creates a new PDR writer.
func NewPDRWriter(s Sink) *PDRWriter {
	return &PDRWriter{sink: s}
}

// Record writes a PDR entry for a state-mutating action.
func (w *PDRWriter) Record(ctx context.Context, action string, inputs interface{}, outcome, taskID string, details interface{}) (*models.PDREntry, error) {
	inputsHash := hashInputs(inputs)
	return w.sink.WritePDR(ctx, action, inputsHash, outcome, taskID, encodeDetails(details))
}

// hashInputs creates a SHA256 hash of the inputs for reproducibility.
func hashInputs(inputs interface{}) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func encodeDetails(details interface{}) string {
	switch d := details.(type) {
	case nil:
		return ""
	case string:
		return d
	case error:
		return d.Error()
	}
	data, err := json.Marshal(details)
	if err != nil {
		return ""
	}
	return string(data)
}
