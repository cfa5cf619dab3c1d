package service

import "context"

// ChatMessage is a single role-tagged message in a gateway request.
type ChatMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ToolSchema describes a schema-constrained function-call contract the
// model is asked to satisfy.
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// CallConfig configures one gateway call.
type CallConfig struct {
	Model       string       `json:"model,omitempty"`
	Temperature float64      `json:"temperature,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Tools       []ToolSchema `json:"tools,omitempty"`

	// Provider forces a specific provider for standard calls. Empty
	// means the process-wide default.
	Provider string `json:"provider,omitempty"`

	// UseTools requests tool-augmented execution even without explicit
	// tool schemas (delegated code execution).
	UseTools bool `json:"use_tools,omitempty"`

	// Operation tags the request log entry ("plan_generation",
	// "step_execution", "follow_up", ...).
	Operation string `json:"operation,omitempty"`

	// Correlation ids carried into the request log.
	AgentID string `json:"agent_id,omitempty"`
	PlanID  string `json:"plan_id,omitempty"`
}

// Usage is the token accounting of one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the normalized result of a gateway call. When the model
// answered through a tool call, Text carries the call's argument JSON
// and FinishReason is "tool_calls".
type Completion struct {
	Text          string `json:"text"`
	Usage         Usage  `json:"usage"`
	ModelUsed     string `json:"model_used"`
	FinishReason  string `json:"finish_reason"`
	ToolCallCount int    `json:"tool_call_count,omitempty"`
}

// Gateway routes chat and embedding requests to reasoning providers,
// applying tool-path fallback and cost accounting. Every attempt,
// success or failure, produces exactly one request log entry.
type Gateway interface {
	ChatCompletion(ctx context.Context, messages []ChatMessage, cfg CallConfig) (*Completion, error)
	Embedding(ctx context.Context, text string) ([]float32, error)
}
