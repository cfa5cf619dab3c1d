package entity

import (
	"errors"
	"testing"
)

func TestStepLifecycle(t *testing.T) {
	step := NewStep("s1", "fetch the data", "use the export endpoint", 30)
	if step.Status != StepPending {
		t.Fatalf("new step status = %s, want %s", step.Status, StepPending)
	}

	if err := step.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if step.Status != StepInProgress {
		t.Errorf("status after Start = %s, want %s", step.Status, StepInProgress)
	}
	if step.StartedAt == nil {
		t.Error("StartedAt not stamped")
	}

	if err := step.Complete("fetched 120 rows"); err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if step.Status != StepCompleted {
		t.Errorf("status after Complete = %s, want %s", step.Status, StepCompleted)
	}
	if step.Result != "fetched 120 rows" {
		t.Errorf("Result = %q", step.Result)
	}
	if step.FinishedAt == nil {
		t.Error("FinishedAt not stamped")
	}
}

func TestStepRefusedTransitions(t *testing.T) {
	tests := []struct {
		name string
		run  func(s *Step) error
		from StepStatus
	}{
		{"complete from pending", func(s *Step) error { return s.Complete("x") }, StepPending},
		{"fail from pending", func(s *Step) error { return s.Fail("x") }, StepPending},
		{"start from completed", func(s *Step) error { return s.Start() }, StepCompleted},
		{"start from failed", func(s *Step) error { return s.Start() }, StepFailed},
		{"start from in_progress", func(s *Step) error { return s.Start() }, StepInProgress},
		{"complete from failed", func(s *Step) error { return s.Complete("x") }, StepFailed},
		{"fail from completed", func(s *Step) error { return s.Fail("x") }, StepCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step := NewStep("s1", "desc", "", 0)
			step.Status = tt.from
			if err := tt.run(step); !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("error = %v, want ErrInvalidTransition", err)
			}
			if step.Status != tt.from {
				t.Errorf("refused transition mutated status to %s", step.Status)
			}
		})
	}
}

func TestStepFailRecordsResult(t *testing.T) {
	step := NewStep("s1", "desc", "", 0)
	if err := step.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := step.Fail("provider timeout"); err != nil {
		t.Fatalf("Fail() error: %v", err)
	}
	if step.Status != StepFailed {
		t.Errorf("status = %s, want %s", step.Status, StepFailed)
	}
	if step.Result != "provider timeout" {
		t.Errorf("Result = %q, want the failure text", step.Result)
	}
}
