package entity

import (
	"fmt"
	"time"
)

// AgentStatus is the lifecycle state of an agent.
type AgentStatus string

const (
	AgentIdle             AgentStatus = "idle"
	AgentPlanning         AgentStatus = "planning"
	AgentAwaitingApproval AgentStatus = "awaiting_approval"
	AgentExecuting        AgentStatus = "executing"
	AgentError            AgentStatus = "error"
)

// agentTransitions defines the allowed status transitions.
// Key = from status, value = set of allowed target statuses.
var agentTransitions = map[AgentStatus]map[AgentStatus]bool{
	AgentIdle: {
		AgentPlanning: true,
	},
	AgentPlanning: {
		AgentAwaitingApproval: true,
		AgentError:            true,
	},
	AgentAwaitingApproval: {
		AgentExecuting: true,
		AgentIdle:      true, // plan rejected
		AgentError:     true,
	},
	AgentExecuting: {
		AgentIdle:  true,
		AgentError: true,
	},
	AgentError: {
		AgentPlanning: true, // new command re-attempts from scratch
	},
}

// Agent is a named, capability-tagged entity that accepts one command
// at a time and carries at most one current plan.
//
// Invariant: CurrentPlanID is non-empty only while Status is planning,
// awaiting_approval, or executing.
type Agent struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	Status        AgentStatus       `json:"status"`
	Capabilities  []string          `json:"capabilities,omitempty"`
	Personality   string            `json:"personality,omitempty"`
	Settings      map[string]string `json:"settings,omitempty"`
	CurrentPlanID string            `json:"current_plan_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// NewAgent creates an idle agent.
func NewAgent(id, name string) (*Agent, error) {
	if id == "" {
		return nil, ErrInvalidAgentID
	}
	if name == "" {
		return nil, ErrInvalidAgentName
	}

	now := time.Now()
	return &Agent{
		ID:        id,
		Name:      name,
		Status:    AgentIdle,
		Settings:  make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Clone returns an independent copy. Stores hand out clones so callers
// cannot mutate persisted state through shared pointers.
func (a *Agent) Clone() *Agent {
	out := *a
	if a.Capabilities != nil {
		out.Capabilities = append([]string(nil), a.Capabilities...)
	}
	if a.Settings != nil {
		out.Settings = make(map[string]string, len(a.Settings))
		for k, v := range a.Settings {
			out.Settings[k] = v
		}
	}
	return &out
}

// CanTransition reports whether moving from the current status to the
// target status is allowed.
func (a *Agent) CanTransition(to AgentStatus) bool {
	allowed, ok := agentTransitions[a.Status]
	return ok && allowed[to]
}

// Transition moves the agent to a new status, enforcing the state machine.
func (a *Agent) Transition(to AgentStatus) error {
	if !a.CanTransition(to) {
		return fmt.Errorf("%w: agent %s → %s", ErrInvalidTransition, a.Status, to)
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	return nil
}

// CanAcceptCommand reports whether a new command may be received.
// Only idle and error agents accept commands.
func (a *Agent) CanAcceptCommand() bool {
	return a.Status == AgentIdle || a.Status == AgentError
}

// SetCurrentPlan associates a plan with the agent. Legal only in
// statuses that permit a current plan.
func (a *Agent) SetCurrentPlan(planID string) error {
	switch a.Status {
	case AgentPlanning, AgentAwaitingApproval, AgentExecuting:
		a.CurrentPlanID = planID
		a.UpdatedAt = time.Now()
		return nil
	}
	return fmt.Errorf("%w: cannot set current plan while %s", ErrInvalidTransition, a.Status)
}

// ClearCurrentPlan drops the current-plan reference.
func (a *Agent) ClearCurrentPlan() {
	a.CurrentPlanID = ""
	a.UpdatedAt = time.Now()
}

// UpdateIdentity sets a derived name/description, reporting whether
// anything changed. Empty arguments leave the existing value alone.
func (a *Agent) UpdateIdentity(name, description string) bool {
	changed := false
	if name != "" && name != a.Name {
		a.Name = name
		changed = true
	}
	if description != "" && description != a.Description {
		a.Description = description
		changed = true
	}
	if changed {
		a.UpdatedAt = time.Now()
	}
	return changed
}
