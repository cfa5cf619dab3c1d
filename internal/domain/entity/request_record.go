package entity

import "time"

// RequestStatus is the outcome of one external reasoning-provider call.
type RequestStatus string

const (
	RequestCompleted RequestStatus = "completed"
	RequestError     RequestStatus = "error"
	RequestPartial   RequestStatus = "partial"
)

// RequestRecord is the audit record of a single external call attempt.
// Created once per attempt, never mutated, retained indefinitely.
type RequestRecord struct {
	ID               string        `json:"id"`
	Provider         string        `json:"provider"`
	Model            string        `json:"model,omitempty"`
	Operation        string        `json:"operation,omitempty"`
	Prompt           string        `json:"prompt,omitempty"`
	Response         string        `json:"response,omitempty"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	TotalTokens      int           `json:"total_tokens"`
	CostUSD          float64       `json:"cost_usd"`
	Duration         time.Duration `json:"duration_ns"`
	Status           RequestStatus `json:"status"`
	ErrorText        string        `json:"error_text,omitempty"`
	ToolCalls        int           `json:"tool_calls,omitempty"`
	AgentID          string        `json:"agent_id,omitempty"`
	PlanID           string        `json:"plan_id,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}
