package entity

import (
	"errors"
	"fmt"
	"testing"
)

func makePlan(t *testing.T, stepCount int) *Plan {
	t.Helper()
	steps := make([]*Step, 0, stepCount)
	for i := 0; i < stepCount; i++ {
		steps = append(steps, NewStep(fmt.Sprintf("step-%d", i), fmt.Sprintf("do thing %d", i), "", 0))
	}
	plan, err := NewPlan("plan-1", "agent-1", "do things", steps)
	if err != nil {
		t.Fatalf("NewPlan() error: %v", err)
	}
	return plan
}

func TestNewPlan(t *testing.T) {
	t.Run("assigns positions in order", func(t *testing.T) {
		plan := makePlan(t, 3)
		if plan.Status != PlanAwaitingApproval {
			t.Errorf("new plan status = %s, want %s", plan.Status, PlanAwaitingApproval)
		}
		for i, s := range plan.Steps {
			if s.Position != i {
				t.Errorf("step %s position = %d, want %d", s.ID, s.Position, i)
			}
		}
	})

	t.Run("rejects empty step list", func(t *testing.T) {
		if _, err := NewPlan("plan-1", "agent-1", "cmd", nil); !errors.Is(err, ErrEmptyPlan) {
			t.Fatalf("NewPlan(nil steps) error = %v, want ErrEmptyPlan", err)
		}
	})
}

func TestPlanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    PlanStatus
		to      PlanStatus
		allowed bool
	}{
		{"awaiting to approved", PlanAwaitingApproval, PlanApproved, true},
		{"awaiting to rejected", PlanAwaitingApproval, PlanRejected, true},
		{"awaiting to executing", PlanAwaitingApproval, PlanExecuting, false},
		{"approved to executing", PlanApproved, PlanExecuting, true},
		{"approved to completed", PlanApproved, PlanCompleted, false},
		{"executing to completed", PlanExecuting, PlanCompleted, true},
		{"executing to failed", PlanExecuting, PlanFailed, true},
		{"executing to approved", PlanExecuting, PlanApproved, false},
		{"rejected is terminal", PlanRejected, PlanApproved, false},
		{"completed is terminal", PlanCompleted, PlanExecuting, false},
		{"failed is terminal", PlanFailed, PlanExecuting, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := makePlan(t, 1)
			plan.Status = tt.from
			err := plan.Transition(tt.to)
			if tt.allowed {
				if err != nil {
					t.Fatalf("Transition(%s) unexpected error: %v", tt.to, err)
				}
				if plan.Status != tt.to {
					t.Errorf("status = %s, want %s", plan.Status, tt.to)
				}
				return
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("Transition(%s) error = %v, want ErrInvalidTransition", tt.to, err)
			}
			if plan.Status != tt.from {
				t.Errorf("refused transition mutated status to %s", plan.Status)
			}
		})
	}
}

func TestPlanStatusIsTerminal(t *testing.T) {
	terminal := map[PlanStatus]bool{
		PlanAwaitingApproval: false,
		PlanApproved:         false,
		PlanExecuting:        false,
		PlanRejected:         true,
		PlanCompleted:        true,
		PlanFailed:           true,
	}
	for status, want := range terminal {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}
}

func TestPlanReorderSteps(t *testing.T) {
	t.Run("full permutation", func(t *testing.T) {
		plan := makePlan(t, 3)
		if err := plan.ReorderSteps([]string{"step-2", "step-0", "step-1"}); err != nil {
			t.Fatalf("ReorderSteps() error: %v", err)
		}
		wantOrder := []string{"step-2", "step-0", "step-1"}
		for i, s := range plan.Steps {
			if s.ID != wantOrder[i] {
				t.Errorf("position %d holds %s, want %s", i, s.ID, wantOrder[i])
			}
			if s.Position != i {
				t.Errorf("step %s position = %d, want %d", s.ID, s.Position, i)
			}
		}
	})

	rejected := []struct {
		name string
		ids  []string
	}{
		{"partial set", []string{"step-0", "step-1"}},
		{"foreign id", []string{"step-0", "step-1", "step-9"}},
		{"duplicate id", []string{"step-0", "step-1", "step-1"}},
		{"superset", []string{"step-0", "step-1", "step-2", "step-2"}},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			plan := makePlan(t, 3)
			if err := plan.ReorderSteps(tt.ids); !errors.Is(err, ErrStepIDMismatch) {
				t.Fatalf("ReorderSteps(%v) error = %v, want ErrStepIDMismatch", tt.ids, err)
			}
			for i, s := range plan.Steps {
				if s.ID != fmt.Sprintf("step-%d", i) {
					t.Errorf("rejected reorder mutated order: position %d holds %s", i, s.ID)
				}
			}
		})
	}
}

func TestPlanAppendFollowUps(t *testing.T) {
	plan := makePlan(t, 1)

	plan.AppendFollowUps(nil)
	if plan.HasFollowUp {
		t.Error("AppendFollowUps(nil) set HasFollowUp")
	}

	plan.AppendFollowUps([]string{"summarize results"})
	plan.AppendFollowUps([]string{"archive artifacts"})
	if !plan.HasFollowUp {
		t.Error("HasFollowUp not set after append")
	}
	if len(plan.FollowUps) != 2 {
		t.Fatalf("FollowUps length = %d, want 2", len(plan.FollowUps))
	}
	if plan.FollowUps[0] != "summarize results" || plan.FollowUps[1] != "archive artifacts" {
		t.Errorf("FollowUps = %v, appended out of order", plan.FollowUps)
	}
}

func TestPlanOrderedStepsIsACopy(t *testing.T) {
	plan := makePlan(t, 2)
	out := plan.OrderedSteps()
	out[0], out[1] = out[1], out[0]
	if plan.Steps[0].ID != "step-0" {
		t.Error("mutating the OrderedSteps slice rearranged the plan's backing slice")
	}
}
