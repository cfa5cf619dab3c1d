package entity

import (
	"fmt"
	"time"
)

// PlanStatus is the lifecycle state of a plan.
type PlanStatus string

const (
	PlanAwaitingApproval PlanStatus = "awaiting_approval"
	PlanApproved         PlanStatus = "approved"
	PlanRejected         PlanStatus = "rejected"
	PlanExecuting        PlanStatus = "executing"
	PlanCompleted        PlanStatus = "completed"
	PlanFailed           PlanStatus = "failed"
)

// IsTerminal reports whether the status permits no further transitions.
func (s PlanStatus) IsTerminal() bool {
	switch s {
	case PlanRejected, PlanCompleted, PlanFailed:
		return true
	}
	return false
}

var planTransitions = map[PlanStatus]map[PlanStatus]bool{
	PlanAwaitingApproval: {
		PlanApproved: true,
		PlanRejected: true,
	},
	PlanApproved: {
		PlanExecuting: true,
	},
	PlanExecuting: {
		PlanCompleted: true,
		PlanFailed:    true,
	},
	// Terminal statuses
	PlanRejected:  {},
	PlanCompleted: {},
	PlanFailed:    {},
}

// Plan is the structured output of command interpretation: a
// description, reasoning, and an ordered list of steps. A plan is never
// deleted, only superseded by a newer plan for the same agent.
type Plan struct {
	ID          string     `json:"id"`
	AgentID     string     `json:"agent_id"`
	Command     string     `json:"command"`
	Description string     `json:"description,omitempty"`
	Reasoning   string     `json:"reasoning,omitempty"`
	Status      PlanStatus `json:"status"`
	Steps       []*Step    `json:"steps"`
	HasFollowUp bool       `json:"has_follow_up"`
	FollowUps   []string   `json:"follow_ups,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewPlan creates a plan awaiting approval. Steps are positioned in the
// order given; membership is immutable after creation.
func NewPlan(id, agentID, command string, steps []*Step) (*Plan, error) {
	if len(steps) == 0 {
		return nil, ErrEmptyPlan
	}
	now := time.Now()
	for i, s := range steps {
		s.Position = i
	}
	return &Plan{
		ID:        id,
		AgentID:   agentID,
		Command:   command,
		Status:    PlanAwaitingApproval,
		Steps:     steps,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Transition moves the plan to a new status, enforcing the state machine.
func (p *Plan) Transition(to PlanStatus) error {
	allowed, ok := planTransitions[p.Status]
	if !ok || !allowed[to] {
		return fmt.Errorf("%w: plan %s → %s", ErrInvalidTransition, p.Status, to)
	}
	p.Status = to
	p.UpdatedAt = time.Now()
	return nil
}

// Approve marks the plan approved. Legal only while awaiting approval.
func (p *Plan) Approve() error {
	return p.Transition(PlanApproved)
}

// Reject marks the plan rejected. Legal only while awaiting approval.
func (p *Plan) Reject() error {
	return p.Transition(PlanRejected)
}

// ReorderSteps rearranges execution order. The supplied id list must be
// exactly the plan's current step id set; a partial or foreign set is
// rejected and the order is left unchanged.
func (p *Plan) ReorderSteps(ids []string) error {
	if len(ids) != len(p.Steps) {
		return ErrStepIDMismatch
	}
	byID := make(map[string]*Step, len(p.Steps))
	for _, s := range p.Steps {
		byID[s.ID] = s
	}
	reordered := make([]*Step, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok || seen[id] {
			return ErrStepIDMismatch
		}
		seen[id] = true
		reordered = append(reordered, s)
	}
	for i, s := range reordered {
		s.Position = i
	}
	p.Steps = reordered
	p.UpdatedAt = time.Now()
	return nil
}

// AppendFollowUps adds follow-up suggestions and flags their presence.
func (p *Plan) AppendFollowUps(items []string) {
	if len(items) == 0 {
		return
	}
	p.FollowUps = append(p.FollowUps, items...)
	p.HasFollowUp = true
	p.UpdatedAt = time.Now()
}

// Clone returns an independent deep copy, steps included.
func (p *Plan) Clone() *Plan {
	out := *p
	out.Steps = make([]*Step, len(p.Steps))
	for i, s := range p.Steps {
		out.Steps[i] = s.Clone()
	}
	if p.FollowUps != nil {
		out.FollowUps = append([]string(nil), p.FollowUps...)
	}
	return &out
}

// OrderedSteps returns a copy of the steps in position order. The
// backing slice is kept position-ordered by NewPlan and ReorderSteps.
func (p *Plan) OrderedSteps() []*Step {
	out := make([]*Step, len(p.Steps))
	copy(out, p.Steps)
	return out
}
