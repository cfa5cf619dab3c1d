package service

import (
	"context"
	"errors"
	"testing"

	"github.com/planwright/planwright/internal/domain/entity"
	"go.uber.org/zap"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"bare array", `["x","y"]`, `["x","y"]`},
		{"fenced json", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced without tag", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around object", `Here is the plan: {"a":1} hope that helps`, `{"a":1}`},
		{"nested braces", `{"a":{"b":2}}`, `{"a":{"b":2}}`},
		{"brace inside string", `{"a":"}"}`, `{"a":"}"}`},
		{"escaped quote inside string", `{"a":"\"}"}`, `{"a":"\"}"}`},
		{"no json at all", "nothing here", "nothing here"},
		{"unterminated object", `note {"a":1`, `{"a":1`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSON(tt.in); got != tt.want {
				t.Errorf("extractJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParsePlanDraft(t *testing.T) {
	t.Run("valid draft", func(t *testing.T) {
		draft, err := parsePlanDraft(`{"description":"d","reasoning":"r","steps":[{"description":"s1","estimated_seconds":10}]}`)
		if err != nil {
			t.Fatalf("parsePlanDraft() error: %v", err)
		}
		if draft.Description != "d" || len(draft.Steps) != 1 {
			t.Errorf("draft = %+v", draft)
		}
		if draft.Steps[0].EstimatedSeconds != 10 {
			t.Errorf("EstimatedSeconds = %d, want 10", draft.Steps[0].EstimatedSeconds)
		}
	})

	t.Run("empty text", func(t *testing.T) {
		if _, err := parsePlanDraft("  "); err == nil {
			t.Fatal("parsePlanDraft(blank) succeeded")
		}
	})

	t.Run("not json", func(t *testing.T) {
		if _, err := parsePlanDraft("not json"); err == nil {
			t.Fatal("parsePlanDraft(prose) succeeded")
		}
	})

	t.Run("no steps", func(t *testing.T) {
		_, err := parsePlanDraft(`{"description":"d","reasoning":"r","steps":[]}`)
		if !errors.Is(err, entity.ErrEmptyPlan) {
			t.Fatalf("error = %v, want ErrEmptyPlan", err)
		}
	})
}

func TestGeneratePlanToolPath(t *testing.T) {
	gateway := newFakeGateway()
	gateway.responses["plan_generation"] = &Completion{Text: twoStepPlanJSON, FinishReason: "tool_calls"}
	planner := NewPlanner(gateway, PlannerConfig{Model: "gpt-4o"}, zap.NewNop())

	agent, _ := entity.NewAgent("agent-1", "worker")
	draft, err := planner.GeneratePlan(context.Background(), agent, "do the thing", false)
	if err != nil {
		t.Fatalf("GeneratePlan() error: %v", err)
	}
	if len(draft.Steps) != 2 {
		t.Errorf("draft has %d steps, want 2", len(draft.Steps))
	}

	ops := gateway.operations()
	if len(ops) != 1 || ops[0] != "plan_generation" {
		t.Errorf("gateway operations = %v, want a single tool-path call", ops)
	}
	if len(gateway.calls[0].Tools) != 1 || gateway.calls[0].Tools[0].Name != "create_plan" {
		t.Errorf("tool-path call carried tools %+v", gateway.calls[0].Tools)
	}
}

func TestGeneratePlanFallsBackToPlainJSON(t *testing.T) {
	gateway := newFakeGateway()
	gateway.responses["plan_generation"] = &Completion{Text: "I cannot call functions, but here is an idea."}
	gateway.responses["plan_generation_fallback"] = &Completion{Text: "```json\n" + twoStepPlanJSON + "\n```"}
	planner := NewPlanner(gateway, PlannerConfig{Model: "gpt-4o"}, zap.NewNop())

	agent, _ := entity.NewAgent("agent-1", "worker")
	draft, err := planner.GeneratePlan(context.Background(), agent, "do the thing", false)
	if err != nil {
		t.Fatalf("GeneratePlan() error: %v", err)
	}
	if len(draft.Steps) != 2 {
		t.Errorf("draft has %d steps, want 2", len(draft.Steps))
	}

	ops := gateway.operations()
	if len(ops) != 2 || ops[1] != "plan_generation_fallback" {
		t.Errorf("gateway operations = %v, want tool path then fallback", ops)
	}
}

func TestGeneratePlanAllPathsFail(t *testing.T) {
	gateway := newFakeGateway()
	gateway.errors["plan_generation"] = errors.New("down")
	gateway.errors["plan_generation_fallback"] = errors.New("down")
	planner := NewPlanner(gateway, PlannerConfig{Model: "gpt-4o"}, zap.NewNop())

	agent, _ := entity.NewAgent("agent-1", "worker")
	if _, err := planner.GeneratePlan(context.Background(), agent, "do the thing", false); err == nil {
		t.Fatal("GeneratePlan() fabricated a plan with every path failing")
	}
}

func TestSuggestFollowUps(t *testing.T) {
	gateway := newFakeGateway()
	gateway.responses["follow_up"] = &Completion{Text: `Suggestions: ["a","b","c"]`}
	planner := NewPlanner(gateway, PlannerConfig{Model: "gpt-4o"}, zap.NewNop())

	agent, _ := entity.NewAgent("agent-1", "worker")
	step := entity.NewStep("s1", "desc", "", 0)
	plan, err := entity.NewPlan("p1", agent.ID, "cmd", []*entity.Step{step})
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}

	items, err := planner.SuggestFollowUps(context.Background(), agent, plan)
	if err != nil {
		t.Fatalf("SuggestFollowUps() error: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("items = %v, want 3 suggestions", items)
	}
}

func TestPlannerConfigDefaults(t *testing.T) {
	planner := NewPlanner(newFakeGateway(), PlannerConfig{Model: "gpt-4o"}, zap.NewNop())
	if planner.config.Temperature != 0.4 {
		t.Errorf("default temperature = %v, want 0.4", planner.config.Temperature)
	}
	if planner.config.MaxTokens != 2048 {
		t.Errorf("default max tokens = %d, want 2048", planner.config.MaxTokens)
	}
}
