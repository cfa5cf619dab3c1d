package entity

import (
	"fmt"
	"time"
)

// StepStatus is the lifecycle state of a single plan step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// Step is one unit of plan execution. Transitions are strictly
// pending → in_progress → {completed, failed}; no skipping, no reverse.
type Step struct {
	ID               string     `json:"id"`
	PlanID           string     `json:"plan_id"`
	Position         int        `json:"position"`
	Description      string     `json:"description"`
	Details          string     `json:"details,omitempty"`
	EstimatedSeconds int        `json:"estimated_seconds,omitempty"`
	Status           StepStatus `json:"status"`
	Result           string     `json:"result,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
}

// NewStep creates a pending step. Position is assigned by NewPlan.
func NewStep(id, description, details string, estimatedSeconds int) *Step {
	return &Step{
		ID:               id,
		Description:      description,
		Details:          details,
		EstimatedSeconds: estimatedSeconds,
		Status:           StepPending,
	}
}

// Clone returns an independent copy.
func (s *Step) Clone() *Step {
	out := *s
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		out.FinishedAt = &t
	}
	return &out
}

// Start moves the step to in_progress.
func (s *Step) Start() error {
	if s.Status != StepPending {
		return fmt.Errorf("%w: step %s → %s", ErrInvalidTransition, s.Status, StepInProgress)
	}
	s.Status = StepInProgress
	now := time.Now()
	s.StartedAt = &now
	return nil
}

// Complete records the result and moves the step to completed.
func (s *Step) Complete(result string) error {
	return s.finish(StepCompleted, result)
}

// Fail records the result and moves the step to failed.
func (s *Step) Fail(result string) error {
	return s.finish(StepFailed, result)
}

func (s *Step) finish(to StepStatus, result string) error {
	if s.Status != StepInProgress {
		return fmt.Errorf("%w: step %s → %s", ErrInvalidTransition, s.Status, to)
	}
	s.Status = to
	s.Result = result
	now := time.Now()
	s.FinishedAt = &now
	return nil
}
