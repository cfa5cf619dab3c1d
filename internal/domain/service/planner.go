package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/planwright/planwright/internal/domain/entity"
	"go.uber.org/zap"
)

// StepDraft is one generated step before it becomes an entity.Step.
type StepDraft struct {
	Description      string `json:"description"`
	Details          string `json:"details,omitempty"`
	EstimatedSeconds int    `json:"estimated_seconds,omitempty"`
}

// PlanDraft is the structured result of plan generation.
type PlanDraft struct {
	Description      string      `json:"description"`
	Reasoning        string      `json:"reasoning"`
	Steps            []StepDraft `json:"steps"`
	HasFollowUp      bool        `json:"has_follow_up"`
	FollowUps        []string    `json:"follow_up_suggestions,omitempty"`
	AgentName        string      `json:"agent_name,omitempty"`
	AgentDescription string      `json:"agent_description,omitempty"`
}

// PlannerConfig holds generation parameters.
type PlannerConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Planner turns a natural-language command into a PlanDraft through the
// gateway. The primary path is a schema-constrained tool call; a plain
// JSON completion is the fallback when that yields nothing usable.
// All generation paths failing is surfaced to the caller; no synthetic
// plan is fabricated here.
type Planner struct {
	gateway Gateway
	config  PlannerConfig
	logger  *zap.Logger
}

// NewPlanner creates a planner.
func NewPlanner(gateway Gateway, cfg PlannerConfig, logger *zap.Logger) *Planner {
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.4
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}
	return &Planner{
		gateway: gateway,
		config:  cfg,
		logger:  logger.With(zap.String("component", "planner")),
	}
}

// GeneratePlan produces a plan draft for the command. When
// deriveIdentity is set (an agent's first plan), the draft also carries
// a suggested agent name and description.
func (p *Planner) GeneratePlan(ctx context.Context, agent *entity.Agent, command string, deriveIdentity bool) (*PlanDraft, error) {
	messages := p.buildPlanMessages(agent, command, deriveIdentity)

	// Primary: schema-constrained tool call.
	completion, err := p.gateway.ChatCompletion(ctx, messages, CallConfig{
		Model:       p.config.Model,
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
		Tools:       []ToolSchema{planToolSchema(deriveIdentity)},
		Operation:   "plan_generation",
		AgentID:     agent.ID,
	})
	if err == nil {
		if draft, perr := parsePlanDraft(completion.Text); perr == nil {
			return draft, nil
		} else {
			p.logger.Warn("Tool-call plan response unusable, falling back",
				zap.String("agent_id", agent.ID),
				zap.Error(perr),
			)
		}
	} else {
		p.logger.Warn("Tool-call plan generation failed, falling back",
			zap.String("agent_id", agent.ID),
			zap.Error(err),
		)
	}

	// Fallback: plain completion asked to answer with raw JSON.
	fallback := append(messages, ChatMessage{
		Role:    "user",
		Content: "Respond with only the JSON object described above. No prose, no code fences.",
	})
	completion, ferr := p.gateway.ChatCompletion(ctx, fallback, CallConfig{
		Model:       p.config.Model,
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
		Operation:   "plan_generation_fallback",
		AgentID:     agent.ID,
	})
	if ferr != nil {
		return nil, fmt.Errorf("plan generation failed on all paths: %w", ferr)
	}

	draft, perr := parsePlanDraft(extractJSON(completion.Text))
	if perr != nil {
		return nil, fmt.Errorf("plan generation produced no usable plan: %w", perr)
	}
	return draft, nil
}

// SuggestFollowUps asks the gateway for follow-up suggestions after a
// completed plan. Returns nil without error when the model offers none.
func (p *Planner) SuggestFollowUps(ctx context.Context, agent *entity.Agent, plan *entity.Plan) ([]string, error) {
	var results []string
	for _, s := range plan.OrderedSteps() {
		if s.Result != "" {
			results = append(results, fmt.Sprintf("step %d: %s", s.Position, s.Result))
		}
	}

	messages := []ChatMessage{
		{Role: "system", Content: "You suggest short follow-up actions after an agent finishes a plan. Respond with a JSON array of strings, at most 3 items, or [] when nothing is worth suggesting."},
		{Role: "user", Content: fmt.Sprintf("Command: %s\nPlan: %s\nStep results:\n%s", plan.Command, plan.Description, strings.Join(results, "\n"))},
	}

	completion, err := p.gateway.ChatCompletion(ctx, messages, CallConfig{
		Model:       p.config.Model,
		Temperature: p.config.Temperature,
		MaxTokens:   512,
		Operation:   "follow_up",
		AgentID:     agent.ID,
		PlanID:      plan.ID,
	})
	if err != nil {
		return nil, err
	}

	var items []string
	if uerr := json.Unmarshal([]byte(extractJSON(completion.Text)), &items); uerr != nil {
		return nil, fmt.Errorf("parse follow-up suggestions: %w", uerr)
	}
	return items, nil
}

func (p *Planner) buildPlanMessages(agent *entity.Agent, command string, deriveIdentity bool) []ChatMessage {
	var sb strings.Builder
	sb.WriteString("You are a planning assistant. Break the user's command into a flat, ordered list of executable steps.\n")
	sb.WriteString("Call the create_plan function with your result.\n\n")
	sb.WriteString("Agent context:\n")
	fmt.Fprintf(&sb, "- name: %s\n", agent.Name)
	if len(agent.Capabilities) > 0 {
		fmt.Fprintf(&sb, "- capabilities: %s\n", strings.Join(agent.Capabilities, ", "))
	}
	if agent.Personality != "" {
		fmt.Fprintf(&sb, "- personality: %s\n", agent.Personality)
	}
	if deriveIdentity {
		sb.WriteString("\nThis is the agent's first plan: also derive a concise agent_name and agent_description from the command.\n")
	}

	return []ChatMessage{
		{Role: "system", Content: sb.String()},
		{Role: "user", Content: command},
	}
}

// planToolSchema is the schema-constrained contract for plan generation.
func planToolSchema(deriveIdentity bool) ToolSchema {
	properties := map[string]any{
		"description": map[string]any{"type": "string", "description": "One-sentence summary of the plan"},
		"reasoning":   map[string]any{"type": "string", "description": "Why the plan is structured this way"},
		"steps": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"description":       map[string]any{"type": "string"},
					"details":           map[string]any{"type": "string"},
					"estimated_seconds": map[string]any{"type": "integer"},
				},
				"required": []string{"description"},
			},
		},
		"has_follow_up":         map[string]any{"type": "boolean"},
		"follow_up_suggestions": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	}
	required := []string{"description", "reasoning", "steps"}
	if deriveIdentity {
		properties["agent_name"] = map[string]any{"type": "string"}
		properties["agent_description"] = map[string]any{"type": "string"}
		required = append(required, "agent_name")
	}

	return ToolSchema{
		Name:        "create_plan",
		Description: "Create a structured, steppable execution plan for the command",
		Parameters: map[string]any{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}

func parsePlanDraft(raw string) (*PlanDraft, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty generation result")
	}
	var draft PlanDraft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return nil, fmt.Errorf("parse plan draft: %w", err)
	}
	if len(draft.Steps) == 0 {
		return nil, entity.ErrEmptyPlan
	}
	return &draft, nil
}

// extractJSON strips code fences and surrounding prose, returning the
// first top-level JSON value in the text.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			text = strings.TrimSpace(rest[:end])
		}
	}
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	opener := text[start]
	closer := byte('}')
	if opener == '[' {
		closer = ']'
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return text[start:]
}
