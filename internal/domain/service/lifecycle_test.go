package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/planwright/planwright/internal/domain/entity"
	"github.com/planwright/planwright/internal/domain/repository"
	"github.com/planwright/planwright/internal/infrastructure/persistence"
	apperrors "github.com/planwright/planwright/pkg/errors"
	"go.uber.org/zap"
)

const twoStepPlanJSON = `{"description":"plan desc","reasoning":"because","steps":[{"description":"first step"},{"description":"second step","estimated_seconds":30}]}`

// fakeGateway routes canned completions by operation tag and records
// every call it receives.
type fakeGateway struct {
	mu        sync.Mutex
	responses map[string]*Completion
	errors    map[string]error
	calls     []CallConfig
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		responses: make(map[string]*Completion),
		errors:    make(map[string]error),
	}
}

func (g *fakeGateway) ChatCompletion(ctx context.Context, messages []ChatMessage, cfg CallConfig) (*Completion, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, cfg)
	if err, ok := g.errors[cfg.Operation]; ok {
		return nil, err
	}
	if c, ok := g.responses[cfg.Operation]; ok {
		return c, nil
	}
	return nil, errors.New("no canned response for operation " + cfg.Operation)
}

func (g *fakeGateway) Embedding(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embedding not wired in fake")
}

func (g *fakeGateway) operations() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.calls))
	for _, c := range g.calls {
		out = append(out, c.Operation)
	}
	return out
}

type emittedEvent struct {
	name    string
	payload any
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []emittedEvent
}

func (n *fakeNotifier) Emit(ctx context.Context, event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, emittedEvent{name: event, payload: payload})
}

func (n *fakeNotifier) has(name string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e.name == name {
			return true
		}
	}
	return false
}

type lifecycleFixture struct {
	agents    repository.AgentRepository
	plans     repository.PlanRepository
	gateway   *fakeGateway
	notifier  *fakeNotifier
	lifecycle *Lifecycle
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()
	logger := zap.NewNop()
	gateway := newFakeGateway()
	gateway.responses["plan_generation"] = &Completion{Text: twoStepPlanJSON, FinishReason: "tool_calls"}
	gateway.responses["step_execution"] = &Completion{Text: "step done"}
	gateway.responses["follow_up"] = &Completion{Text: `["review the output"]`}

	agents := persistence.NewMemoryAgentRepository()
	plans := persistence.NewMemoryPlanRepository()
	notifier := &fakeNotifier{}
	planner := NewPlanner(gateway, PlannerConfig{Model: "gpt-4o"}, logger)

	return &lifecycleFixture{
		agents:    agents,
		plans:     plans,
		gateway:   gateway,
		notifier:  notifier,
		lifecycle: NewLifecycle(agents, plans, planner, gateway, notifier, "gpt-4o", logger),
	}
}

func (f *lifecycleFixture) seedAgent(t *testing.T, id string) *entity.Agent {
	t.Helper()
	agent, err := entity.NewAgent(id, "worker")
	if err != nil {
		t.Fatalf("NewAgent() error: %v", err)
	}
	if err := f.agents.Save(context.Background(), agent); err != nil {
		t.Fatalf("seed agent: %v", err)
	}
	return agent
}

func TestReceiveCommand(t *testing.T) {
	f := newLifecycleFixture(t)
	agent := f.seedAgent(t, "agent-1")
	ctx := context.Background()

	plan, err := f.lifecycle.ReceiveCommand(ctx, agent.ID, "collect the reports")
	if err != nil {
		t.Fatalf("ReceiveCommand() error: %v", err)
	}

	if plan.Status != entity.PlanAwaitingApproval {
		t.Errorf("plan status = %s, want %s", plan.Status, entity.PlanAwaitingApproval)
	}
	if len(plan.Steps) != 2 {
		t.Fatalf("plan has %d steps, want 2", len(plan.Steps))
	}
	if plan.Description != "plan desc" || plan.Reasoning != "because" {
		t.Errorf("draft fields not carried: %q / %q", plan.Description, plan.Reasoning)
	}

	stored, err := f.agents.FindByID(ctx, agent.ID)
	if err != nil {
		t.Fatalf("reload agent: %v", err)
	}
	if stored.Status != entity.AgentAwaitingApproval {
		t.Errorf("agent status = %s, want %s", stored.Status, entity.AgentAwaitingApproval)
	}
	if stored.CurrentPlanID != plan.ID {
		t.Errorf("CurrentPlanID = %q, want %q", stored.CurrentPlanID, plan.ID)
	}
	if !f.notifier.has(EventPlanCreated) {
		t.Error("plan_created event not emitted")
	}
}

func TestReceiveCommandEmpty(t *testing.T) {
	f := newLifecycleFixture(t)
	agent := f.seedAgent(t, "agent-1")

	if _, err := f.lifecycle.ReceiveCommand(context.Background(), agent.ID, ""); !errors.Is(err, entity.ErrEmptyCommand) {
		t.Fatalf("error = %v, want ErrEmptyCommand", err)
	}
}

func TestReceiveCommandWhileBusy(t *testing.T) {
	f := newLifecycleFixture(t)
	agent := f.seedAgent(t, "agent-1")
	ctx := context.Background()

	if _, err := f.lifecycle.ReceiveCommand(ctx, agent.ID, "first"); err != nil {
		t.Fatalf("first command: %v", err)
	}
	_, err := f.lifecycle.ReceiveCommand(ctx, agent.ID, "second")
	if !apperrors.IsInvalidState(err) {
		t.Fatalf("error = %v, want invalid-state", err)
	}
}

func TestReceiveCommandGenerationFailure(t *testing.T) {
	f := newLifecycleFixture(t)
	agent := f.seedAgent(t, "agent-1")
	ctx := context.Background()

	f.gateway.errors["plan_generation"] = errors.New("provider down")
	f.gateway.errors["plan_generation_fallback"] = errors.New("provider down")

	if _, err := f.lifecycle.ReceiveCommand(ctx, agent.ID, "do it"); err == nil {
		t.Fatal("ReceiveCommand() succeeded despite generation failure on all paths")
	}

	stored, err := f.agents.FindByID(ctx, agent.ID)
	if err != nil {
		t.Fatalf("reload agent: %v", err)
	}
	if stored.Status != entity.AgentError {
		t.Errorf("agent status = %s, want %s", stored.Status, entity.AgentError)
	}
	if stored.CurrentPlanID != "" {
		t.Errorf("CurrentPlanID = %q, want empty after failure", stored.CurrentPlanID)
	}
	if !f.notifier.has(EventAgentError) {
		t.Error("agent_error event not emitted")
	}
}

func TestReceiveCommandAfterError(t *testing.T) {
	f := newLifecycleFixture(t)
	agent := f.seedAgent(t, "agent-1")
	ctx := context.Background()

	f.gateway.errors["plan_generation"] = errors.New("provider down")
	f.gateway.errors["plan_generation_fallback"] = errors.New("provider down")
	if _, err := f.lifecycle.ReceiveCommand(ctx, agent.ID, "do it"); err == nil {
		t.Fatal("expected generation failure")
	}

	delete(f.gateway.errors, "plan_generation")
	delete(f.gateway.errors, "plan_generation_fallback")
	if _, err := f.lifecycle.ReceiveCommand(ctx, agent.ID, "try again"); err != nil {
		t.Fatalf("errored agent refused a new command: %v", err)
	}
}

func TestGenerateQueuedDerivesIdentity(t *testing.T) {
	f := newLifecycleFixture(t)
	agent := f.seedAgent(t, "agent-1")
	ctx := context.Background()

	f.gateway.responses["plan_generation"] = &Completion{
		Text:         `{"description":"d","reasoning":"r","steps":[{"description":"s"}],"agent_name":"report-collector","agent_description":"collects weekly reports"}`,
		FinishReason: "tool_calls",
	}

	err := f.lifecycle.GenerateQueued(ctx, GenerationRequest{
		AgentID:   agent.ID,
		Command:   "collect weekly reports",
		FirstPlan: true,
	})
	if err != nil {
		t.Fatalf("GenerateQueued() error: %v", err)
	}

	stored, err := f.agents.FindByID(ctx, agent.ID)
	if err != nil {
		t.Fatalf("reload agent: %v", err)
	}
	if stored.Name != "report-collector" {
		t.Errorf("agent name = %q, want report-collector", stored.Name)
	}
	if stored.Status != entity.AgentAwaitingApproval {
		t.Errorf("agent status = %s, want %s", stored.Status, entity.AgentAwaitingApproval)
	}
	if !f.notifier.has(EventAgentUpdated) {
		t.Error("agent_updated event not emitted")
	}
}

func TestApproveAndRejectPlan(t *testing.T) {
	t.Run("approve", func(t *testing.T) {
		f := newLifecycleFixture(t)
		agent := f.seedAgent(t, "agent-1")
		ctx := context.Background()

		plan, err := f.lifecycle.ReceiveCommand(ctx, agent.ID, "cmd")
		if err != nil {
			t.Fatalf("ReceiveCommand: %v", err)
		}
		if err := f.lifecycle.ApprovePlan(ctx, agent.ID); err != nil {
			t.Fatalf("ApprovePlan() error: %v", err)
		}

		stored, err := f.plans.FindByID(ctx, plan.ID)
		if err != nil {
			t.Fatalf("reload plan: %v", err)
		}
		if stored.Status != entity.PlanApproved {
			t.Errorf("plan status = %s, want %s", stored.Status, entity.PlanApproved)
		}
		if !f.notifier.has(EventPlanApproved) {
			t.Error("plan_approved event not emitted")
		}
	})

	t.Run("reject returns agent to idle", func(t *testing.T) {
		f := newLifecycleFixture(t)
		agent := f.seedAgent(t, "agent-1")
		ctx := context.Background()

		plan, err := f.lifecycle.ReceiveCommand(ctx, agent.ID, "cmd")
		if err != nil {
			t.Fatalf("ReceiveCommand: %v", err)
		}
		if err := f.lifecycle.RejectPlan(ctx, agent.ID); err != nil {
			t.Fatalf("RejectPlan() error: %v", err)
		}

		storedPlan, _ := f.plans.FindByID(ctx, plan.ID)
		if storedPlan.Status != entity.PlanRejected {
			t.Errorf("plan status = %s, want %s", storedPlan.Status, entity.PlanRejected)
		}
		storedAgent, _ := f.agents.FindByID(ctx, agent.ID)
		if storedAgent.Status != entity.AgentIdle {
			t.Errorf("agent status = %s, want %s", storedAgent.Status, entity.AgentIdle)
		}
		if storedAgent.CurrentPlanID != "" {
			t.Errorf("CurrentPlanID = %q, want empty after rejection", storedAgent.CurrentPlanID)
		}
		if !f.notifier.has(EventPlanRejected) {
			t.Error("plan_rejected event not emitted")
		}
	})

	t.Run("approve without a current plan", func(t *testing.T) {
		f := newLifecycleFixture(t)
		agent := f.seedAgent(t, "agent-1")
		if err := f.lifecycle.ApprovePlan(context.Background(), agent.ID); !errors.Is(err, entity.ErrNoCurrentPlan) {
			t.Fatalf("error = %v, want ErrNoCurrentPlan", err)
		}
	})
}

func TestExecutePlan(t *testing.T) {
	f := newLifecycleFixture(t)
	agent := f.seedAgent(t, "agent-1")
	ctx := context.Background()

	plan, err := f.lifecycle.ReceiveCommand(ctx, agent.ID, "cmd")
	if err != nil {
		t.Fatalf("ReceiveCommand: %v", err)
	}
	if err := f.lifecycle.ApprovePlan(ctx, agent.ID); err != nil {
		t.Fatalf("ApprovePlan: %v", err)
	}
	if err := f.lifecycle.ExecutePlan(ctx, agent.ID); err != nil {
		t.Fatalf("ExecutePlan() error: %v", err)
	}

	stored, err := f.plans.FindByID(ctx, plan.ID)
	if err != nil {
		t.Fatalf("reload plan: %v", err)
	}
	if stored.Status != entity.PlanCompleted {
		t.Errorf("plan status = %s, want %s", stored.Status, entity.PlanCompleted)
	}
	for _, s := range stored.OrderedSteps() {
		if s.Status != entity.StepCompleted {
			t.Errorf("step %d status = %s, want %s", s.Position, s.Status, entity.StepCompleted)
		}
		if s.Result != "step done" {
			t.Errorf("step %d result = %q, want the completion text", s.Position, s.Result)
		}
	}
	if len(stored.FollowUps) != 1 || stored.FollowUps[0] != "review the output" {
		t.Errorf("FollowUps = %v, want the suggested follow-up", stored.FollowUps)
	}

	storedAgent, _ := f.agents.FindByID(ctx, agent.ID)
	if storedAgent.Status != entity.AgentIdle {
		t.Errorf("agent status = %s, want %s", storedAgent.Status, entity.AgentIdle)
	}
	if storedAgent.CurrentPlanID != "" {
		t.Errorf("CurrentPlanID = %q, want empty after completion", storedAgent.CurrentPlanID)
	}
	if !f.notifier.has(EventStepStatus) {
		t.Error("step_status events not emitted")
	}
	if !f.notifier.has(EventPlanCompleted) {
		t.Error("plan_completed event not emitted")
	}
}

func TestExecutePlanFollowUpFailureIsSoft(t *testing.T) {
	f := newLifecycleFixture(t)
	agent := f.seedAgent(t, "agent-1")
	ctx := context.Background()

	f.gateway.errors["follow_up"] = errors.New("provider down")

	plan, err := f.lifecycle.ReceiveCommand(ctx, agent.ID, "cmd")
	if err != nil {
		t.Fatalf("ReceiveCommand: %v", err)
	}
	if err := f.lifecycle.ApprovePlan(ctx, agent.ID); err != nil {
		t.Fatalf("ApprovePlan: %v", err)
	}
	if err := f.lifecycle.ExecutePlan(ctx, agent.ID); err != nil {
		t.Fatalf("follow-up failure leaked into ExecutePlan: %v", err)
	}

	stored, _ := f.plans.FindByID(ctx, plan.ID)
	if stored.Status != entity.PlanCompleted {
		t.Errorf("plan status = %s, want %s", stored.Status, entity.PlanCompleted)
	}
	if len(stored.FollowUps) != 0 {
		t.Errorf("FollowUps = %v, want none", stored.FollowUps)
	}
}

func TestExecutePlanHardFault(t *testing.T) {
	f := newLifecycleFixture(t)
	agent := f.seedAgent(t, "agent-1")
	ctx := context.Background()

	f.gateway.errors["step_execution"] = errors.New("provider down")

	plan, err := f.lifecycle.ReceiveCommand(ctx, agent.ID, "cmd")
	if err != nil {
		t.Fatalf("ReceiveCommand: %v", err)
	}
	if err := f.lifecycle.ApprovePlan(ctx, agent.ID); err != nil {
		t.Fatalf("ApprovePlan: %v", err)
	}

	err = f.lifecycle.ExecutePlan(ctx, agent.ID)
	if err == nil {
		t.Fatal("ExecutePlan() succeeded despite a gateway fault")
	}
	if !strings.Contains(err.Error(), "step 0 execution") {
		t.Errorf("error = %v, want step-qualified", err)
	}

	stored, _ := f.plans.FindByID(ctx, plan.ID)
	if stored.Status != entity.PlanFailed {
		t.Errorf("plan status = %s, want %s", stored.Status, entity.PlanFailed)
	}
	first := stored.OrderedSteps()[0]
	if first.Status != entity.StepFailed {
		t.Errorf("first step status = %s, want %s", first.Status, entity.StepFailed)
	}
	second := stored.OrderedSteps()[1]
	if second.Status != entity.StepPending {
		t.Errorf("second step status = %s, want untouched %s", second.Status, entity.StepPending)
	}

	storedAgent, _ := f.agents.FindByID(ctx, agent.ID)
	if storedAgent.Status != entity.AgentError {
		t.Errorf("agent status = %s, want %s", storedAgent.Status, entity.AgentError)
	}
	if !f.notifier.has(EventPlanFailed) {
		t.Error("plan_failed event not emitted")
	}
}

func TestExecutePlanLosesRacedClaim(t *testing.T) {
	f := newLifecycleFixture(t)
	agent := f.seedAgent(t, "agent-1")
	ctx := context.Background()

	plan, err := f.lifecycle.ReceiveCommand(ctx, agent.ID, "cmd")
	if err != nil {
		t.Fatalf("ReceiveCommand: %v", err)
	}
	if err := f.lifecycle.ApprovePlan(ctx, agent.ID); err != nil {
		t.Fatalf("ApprovePlan: %v", err)
	}

	// A concurrent executor claimed the plan first.
	claimed, err := f.plans.ClaimForExecution(ctx, plan.ID)
	if err != nil || !claimed {
		t.Fatalf("pre-claim failed: claimed=%v err=%v", claimed, err)
	}

	if err := f.lifecycle.ExecutePlan(ctx, agent.ID); !apperrors.IsInvalidState(err) {
		t.Fatalf("error = %v, want invalid-state after losing the claim", err)
	}
}
