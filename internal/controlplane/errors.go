package controlplane

import (
	"errors"

	"github.com/fentz26/planboard/internal/store"
)

// Sentinel errors for control plane operations.
var (
	ErrTaskNotFound = store.ErrTaskNotFound
	ErrPlanNotFound = store.ErrPlanNotFound
	ErrInvalidInput = errors.New("invalid input")
	ErrEmptyEdit    = errors.New("edit changes nothing")
)
