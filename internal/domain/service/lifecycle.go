package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/planwright/planwright/internal/domain/entity"
	"github.com/planwright/planwright/internal/domain/repository"
	apperrors "github.com/planwright/planwright/pkg/errors"
	"go.uber.org/zap"
)

// Lifecycle drives the agent/plan/step state machines: command intake,
// approval, rejection, and step-by-step execution through the gateway.
// State-machine violations are rejected synchronously without side
// effects; external-call failures become durable error statuses plus a
// notification, then re-raise to the caller.
type Lifecycle struct {
	agents   repository.AgentRepository
	plans    repository.PlanRepository
	planner  *Planner
	gateway  Gateway
	notifier Notifier
	logger   *zap.Logger

	execModel string
}

// NewLifecycle creates the lifecycle service. execModel is the model
// used for step execution; empty selects the gateway default.
func NewLifecycle(
	agents repository.AgentRepository,
	plans repository.PlanRepository,
	planner *Planner,
	gateway Gateway,
	notifier Notifier,
	execModel string,
	logger *zap.Logger,
) *Lifecycle {
	return &Lifecycle{
		agents:    agents,
		plans:     plans,
		planner:   planner,
		gateway:   gateway,
		notifier:  notifier,
		logger:    logger.With(zap.String("component", "lifecycle")),
		execModel: execModel,
	}
}

// ReceiveCommand accepts a natural-language command for the agent,
// generates a plan synchronously, and leaves the agent awaiting
// approval. Legal only from idle or error.
func (s *Lifecycle) ReceiveCommand(ctx context.Context, agentID, command string) (*entity.Plan, error) {
	if command == "" {
		return nil, entity.ErrEmptyCommand
	}

	agent, err := s.agents.FindByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if !agent.CanAcceptCommand() {
		return nil, apperrors.NewInvalidStateError(
			fmt.Sprintf("agent %s cannot accept a command while %s", agentID, agent.Status))
	}

	if err := agent.Transition(entity.AgentPlanning); err != nil {
		return nil, err
	}
	if err := s.agents.Save(ctx, agent); err != nil {
		return nil, err
	}

	plan, err := s.generateAndStore(ctx, agent, command, false)
	if err != nil {
		s.failAgent(ctx, agent, "plan generation failed", err)
		return nil, err
	}
	return plan, nil
}

// GenerateQueued performs plan generation for a dequeued request. The
// agent may still be idle (enqueued right after creation) or in error
// from a previous attempt; it is moved through planning here.
func (s *Lifecycle) GenerateQueued(ctx context.Context, item GenerationRequest) error {
	agent, err := s.agents.FindByID(ctx, item.AgentID)
	if err != nil {
		return err
	}

	if agent.Status != entity.AgentPlanning {
		if !agent.CanAcceptCommand() {
			return apperrors.NewInvalidStateError(
				fmt.Sprintf("agent %s cannot start generation while %s", agent.ID, agent.Status))
		}
		if err := agent.Transition(entity.AgentPlanning); err != nil {
			return err
		}
		if err := s.agents.Save(ctx, agent); err != nil {
			return err
		}
	}

	if _, err := s.generateAndStore(ctx, agent, item.Command, item.FirstPlan); err != nil {
		s.failAgent(ctx, agent, "queued plan generation failed", err)
		return err
	}
	return nil
}

// generateAndStore runs the planner, persists the resulting plan, and
// moves the agent to awaiting_approval.
func (s *Lifecycle) generateAndStore(ctx context.Context, agent *entity.Agent, command string, deriveIdentity bool) (*entity.Plan, error) {
	draft, err := s.planner.GeneratePlan(ctx, agent, command, deriveIdentity)
	if err != nil {
		return nil, err
	}

	steps := make([]*entity.Step, 0, len(draft.Steps))
	for _, sd := range draft.Steps {
		steps = append(steps, entity.NewStep(uuid.NewString(), sd.Description, sd.Details, sd.EstimatedSeconds))
	}

	plan, err := entity.NewPlan(uuid.NewString(), agent.ID, command, steps)
	if err != nil {
		return nil, err
	}
	plan.Description = draft.Description
	plan.Reasoning = draft.Reasoning
	plan.HasFollowUp = draft.HasFollowUp
	plan.FollowUps = draft.FollowUps
	for _, st := range plan.Steps {
		st.PlanID = plan.ID
	}

	if err := s.plans.Save(ctx, plan); err != nil {
		return nil, err
	}

	if deriveIdentity && agent.UpdateIdentity(draft.AgentName, draft.AgentDescription) {
		s.notifier.Emit(ctx, EventAgentUpdated, AgentEventPayload{
			AgentID:     agent.ID,
			Name:        agent.Name,
			Description: agent.Description,
			Status:      string(agent.Status),
		})
	}

	if err := agent.Transition(entity.AgentAwaitingApproval); err != nil {
		return nil, err
	}
	if err := agent.SetCurrentPlan(plan.ID); err != nil {
		return nil, err
	}
	if err := s.agents.Save(ctx, agent); err != nil {
		return nil, err
	}

	s.notifier.Emit(ctx, EventPlanCreated, PlanEventPayload{
		AgentID:     agent.ID,
		PlanID:      plan.ID,
		Description: plan.Description,
		StepCount:   len(plan.Steps),
	})

	s.logger.Info("Plan generated",
		zap.String("agent_id", agent.ID),
		zap.String("plan_id", plan.ID),
		zap.Int("steps", len(plan.Steps)),
	)
	return plan, nil
}

// ApprovePlan marks the agent's current plan approved. Execution is
// driven separately (orchestrator sweep or an explicit ExecutePlan).
func (s *Lifecycle) ApprovePlan(ctx context.Context, agentID string) error {
	agent, plan, err := s.currentPlan(ctx, agentID)
	if err != nil {
		return err
	}
	if agent.Status != entity.AgentAwaitingApproval {
		return apperrors.NewInvalidStateError(
			fmt.Sprintf("agent %s is not awaiting approval", agentID))
	}
	if err := plan.Approve(); err != nil {
		return err
	}
	if err := s.plans.Save(ctx, plan); err != nil {
		return err
	}

	s.notifier.Emit(ctx, EventPlanApproved, PlanEventPayload{
		AgentID: agent.ID,
		PlanID:  plan.ID,
	})
	return nil
}

// RejectPlan marks the current plan rejected and returns the agent to
// idle with no current plan.
func (s *Lifecycle) RejectPlan(ctx context.Context, agentID string) error {
	agent, plan, err := s.currentPlan(ctx, agentID)
	if err != nil {
		return err
	}
	if agent.Status != entity.AgentAwaitingApproval {
		return apperrors.NewInvalidStateError(
			fmt.Sprintf("agent %s is not awaiting approval", agentID))
	}
	if err := plan.Reject(); err != nil {
		return err
	}
	if err := s.plans.Save(ctx, plan); err != nil {
		return err
	}

	if err := agent.Transition(entity.AgentIdle); err != nil {
		return err
	}
	agent.ClearCurrentPlan()
	if err := s.agents.Save(ctx, agent); err != nil {
		return err
	}

	s.notifier.Emit(ctx, EventPlanRejected, PlanEventPayload{
		AgentID: agent.ID,
		PlanID:  plan.ID,
	})
	return nil
}

// ExecutePlan runs the agent's approved plan step by step, strictly in
// position order, one step at a time. The approved→executing flip is an
// atomic claim, so concurrent callers (or adjacent orchestrator ticks)
// execute the plan at most once.
//
// A step whose gateway call succeeds is recorded and completed whatever
// its textual outcome; a gateway error is a hard fault that fails the
// plan and puts the agent in error.
func (s *Lifecycle) ExecutePlan(ctx context.Context, agentID string) error {
	agent, plan, err := s.currentPlan(ctx, agentID)
	if err != nil {
		return err
	}

	claimed, err := s.plans.ClaimForExecution(ctx, plan.ID)
	if err != nil {
		return err
	}
	if !claimed {
		return apperrors.NewInvalidStateError(
			fmt.Sprintf("plan %s is not approved for execution", plan.ID))
	}
	if err := plan.Transition(entity.PlanExecuting); err != nil {
		// The claim already flipped the stored status; reload to stay
		// consistent with the store.
		if plan, err = s.plans.FindByID(ctx, plan.ID); err != nil {
			return err
		}
	}

	if err := agent.Transition(entity.AgentExecuting); err != nil {
		return err
	}
	if err := s.agents.Save(ctx, agent); err != nil {
		return err
	}

	if err := s.runSteps(ctx, agent, plan); err != nil {
		s.failPlan(ctx, agent, plan, err)
		return err
	}

	if err := plan.Transition(entity.PlanCompleted); err != nil {
		return err
	}
	if err := s.plans.Save(ctx, plan); err != nil {
		return err
	}

	// One more gateway round for follow-up suggestions. Failure here is
	// soft: the plan is already complete.
	if followUps, ferr := s.planner.SuggestFollowUps(ctx, agent, plan); ferr != nil {
		s.logger.Warn("Follow-up suggestion failed",
			zap.String("plan_id", plan.ID),
			zap.Error(ferr),
		)
	} else if len(followUps) > 0 {
		plan.AppendFollowUps(followUps)
		if aerr := s.plans.AppendFollowUps(ctx, plan.ID, followUps); aerr != nil {
			s.logger.Warn("Persisting follow-ups failed",
				zap.String("plan_id", plan.ID),
				zap.Error(aerr),
			)
		}
	}

	if err := agent.Transition(entity.AgentIdle); err != nil {
		return err
	}
	agent.ClearCurrentPlan()
	if err := s.agents.Save(ctx, agent); err != nil {
		return err
	}

	s.notifier.Emit(ctx, EventPlanCompleted, PlanEventPayload{
		AgentID:     agent.ID,
		PlanID:      plan.ID,
		Description: plan.Description,
		FollowUps:   plan.FollowUps,
	})

	s.logger.Info("Plan completed",
		zap.String("agent_id", agent.ID),
		zap.String("plan_id", plan.ID),
	)
	return nil
}

// runSteps executes every step in position order through the gateway.
func (s *Lifecycle) runSteps(ctx context.Context, agent *entity.Agent, plan *entity.Plan) error {
	for _, step := range plan.OrderedSteps() {
		if err := step.Start(); err != nil {
			return err
		}
		if err := s.plans.Save(ctx, plan); err != nil {
			return err
		}
		s.emitStep(ctx, agent, plan, step)

		completion, err := s.gateway.ChatCompletion(ctx, s.stepMessages(agent, plan, step), CallConfig{
			Model:     s.execModel,
			UseTools:  true,
			Operation: "step_execution",
			AgentID:   agent.ID,
			PlanID:    plan.ID,
		})
		if err != nil {
			// Hard gateway fault: record it on the step, then propagate.
			_ = step.Fail(err.Error())
			_ = s.plans.Save(ctx, plan)
			s.emitStep(ctx, agent, plan, step)
			return fmt.Errorf("step %d execution: %w", step.Position, err)
		}

		if err := step.Complete(completion.Text); err != nil {
			return err
		}
		if err := s.plans.Save(ctx, plan); err != nil {
			return err
		}
		s.emitStep(ctx, agent, plan, step)
	}
	return nil
}

func (s *Lifecycle) stepMessages(agent *entity.Agent, plan *entity.Plan, step *entity.Step) []ChatMessage {
	system := fmt.Sprintf(
		"You are %s, executing one step of an approved plan.\nPlan: %s\nCarry out the step and report the outcome concisely.",
		agent.Name, plan.Description)
	user := step.Description
	if step.Details != "" {
		user += "\n\nDetails: " + step.Details
	}
	return []ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
}

func (s *Lifecycle) emitStep(ctx context.Context, agent *entity.Agent, plan *entity.Plan, step *entity.Step) {
	s.notifier.Emit(ctx, EventStepStatus, StepEventPayload{
		AgentID:     agent.ID,
		PlanID:      plan.ID,
		StepID:      step.ID,
		Position:    step.Position,
		Status:      string(step.Status),
		Description: step.Description,
		Result:      step.Result,
	})
}

// currentPlan loads the agent and its current plan.
func (s *Lifecycle) currentPlan(ctx context.Context, agentID string) (*entity.Agent, *entity.Plan, error) {
	agent, err := s.agents.FindByID(ctx, agentID)
	if err != nil {
		return nil, nil, err
	}
	if agent.CurrentPlanID == "" {
		return nil, nil, entity.ErrNoCurrentPlan
	}
	plan, err := s.plans.FindByID(ctx, agent.CurrentPlanID)
	if err != nil {
		return nil, nil, err
	}
	return agent, plan, nil
}

// failAgent moves the agent to error durably and emits the error event.
// The original failure stays with the caller.
func (s *Lifecycle) failAgent(ctx context.Context, agent *entity.Agent, reason string, cause error) {
	if terr := agent.Transition(entity.AgentError); terr != nil {
		s.logger.Error("Agent error transition refused",
			zap.String("agent_id", agent.ID),
			zap.Error(terr),
		)
		return
	}
	agent.ClearCurrentPlan()
	if serr := s.agents.Save(ctx, agent); serr != nil {
		s.logger.Error("Persisting agent error status failed",
			zap.String("agent_id", agent.ID),
			zap.Error(serr),
		)
	}
	s.notifier.Emit(ctx, EventAgentError, AgentEventPayload{
		AgentID: agent.ID,
		Status:  string(agent.Status),
		Error:   fmt.Sprintf("%s: %v", reason, cause),
	})
}

// failPlan marks the plan failed and the agent errored after a hard
// execution fault.
func (s *Lifecycle) failPlan(ctx context.Context, agent *entity.Agent, plan *entity.Plan, cause error) {
	if terr := plan.Transition(entity.PlanFailed); terr == nil {
		if serr := s.plans.Save(ctx, plan); serr != nil {
			s.logger.Error("Persisting failed plan failed",
				zap.String("plan_id", plan.ID),
				zap.Error(serr),
			)
		}
	}
	s.notifier.Emit(ctx, EventPlanFailed, PlanEventPayload{
		AgentID: agent.ID,
		PlanID:  plan.ID,
		Error:   cause.Error(),
	})
	s.failAgent(ctx, agent, "plan execution failed", cause)
}
