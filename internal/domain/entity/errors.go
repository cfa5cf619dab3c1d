package entity

import "errors"

var (
	ErrInvalidAgentID   = errors.New("agent id must not be empty")
	ErrInvalidAgentName = errors.New("agent name must not be empty")
	ErrEmptyCommand     = errors.New("command text must not be empty")
	ErrEmptyPlan        = errors.New("plan must contain at least one step")

	// ErrInvalidTransition is wrapped by agent, plan, and step transition
	// failures so callers can detect state-machine violations uniformly.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrStepIDMismatch is returned by ReorderSteps when the supplied id
	// set is not exactly the plan's current step id set.
	ErrStepIDMismatch = errors.New("step id set does not match plan")

	ErrNoCurrentPlan = errors.New("agent has no current plan")
)
