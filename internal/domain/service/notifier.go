package service

import "context"

// Event names broadcast to external subscribers (dashboard, approval queue).
const (
	EventPlanCreated      = "plan_created"
	EventPlanApproved     = "plan_approved"
	EventPlanRejected     = "plan_rejected"
	EventPlanCompleted    = "plan_completed"
	EventPlanFailed       = "plan_failed"
	EventStepStatus       = "step_status"
	EventAgentUpdated     = "agent_updated"
	EventAgentError       = "agent_error"
	EventAwaitingApproval = "agents_awaiting_approval"
)

// Notifier is fire-and-forget fan-out of state-change notifications.
// Emission must never fail the caller; with no transport attached it is
// a logged no-op.
type Notifier interface {
	Emit(ctx context.Context, event string, payload any)
}

// PlanEventPayload accompanies plan lifecycle events.
type PlanEventPayload struct {
	AgentID     string   `json:"agent_id"`
	PlanID      string   `json:"plan_id"`
	Description string   `json:"description,omitempty"`
	StepCount   int      `json:"step_count,omitempty"`
	FollowUps   []string `json:"follow_ups,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// StepEventPayload accompanies step_status events.
type StepEventPayload struct {
	AgentID     string `json:"agent_id"`
	PlanID      string `json:"plan_id"`
	StepID      string `json:"step_id"`
	Position    int    `json:"position"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
	Result      string `json:"result,omitempty"`
}

// AwaitingApprovalPayload batches every agent waiting on a human
// decision; re-announced each orchestrator tick for UI consumers that
// missed the original event.
type AwaitingApprovalPayload struct {
	Agents []AwaitingAgent `json:"agents"`
}

// AwaitingAgent is one entry of AwaitingApprovalPayload.
type AwaitingAgent struct {
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
	PlanID    string `json:"plan_id"`
}

// AgentEventPayload accompanies agent_updated and agent_error events.
type AgentEventPayload struct {
	AgentID     string `json:"agent_id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	Error       string `json:"error,omitempty"`
}
