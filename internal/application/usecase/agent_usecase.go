package usecase

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/planwright/planwright/internal/domain/entity"
	"github.com/planwright/planwright/internal/domain/repository"
	"github.com/planwright/planwright/internal/domain/service"
	apperrors "github.com/planwright/planwright/pkg/errors"
	"go.uber.org/zap"
)

// AgentUseCase is the application-layer facade behind the HTTP surface.
// Handlers stay thin; state-machine rules live in the entities and the
// lifecycle service.
type AgentUseCase struct {
	agents    repository.AgentRepository
	plans     repository.PlanRepository
	requests  repository.RequestLogRepository
	lifecycle *service.Lifecycle
	queue     *service.GenerationQueue
	logger    *zap.Logger
}

// NewAgentUseCase creates the agent use case.
func NewAgentUseCase(
	agents repository.AgentRepository,
	plans repository.PlanRepository,
	requests repository.RequestLogRepository,
	lifecycle *service.Lifecycle,
	queue *service.GenerationQueue,
	logger *zap.Logger,
) *AgentUseCase {
	return &AgentUseCase{
		agents:    agents,
		plans:     plans,
		requests:  requests,
		lifecycle: lifecycle,
		queue:     queue,
		logger:    logger.With(zap.String("component", "agent-usecase")),
	}
}

// CreateAgentInput carries the creation request.
type CreateAgentInput struct {
	Name         string
	Description  string
	Capabilities []string
	Personality  string
	FirstCommand string
}

// CreateAgent creates an idle agent and, when a first command is given,
// enqueues its plan generation for the orchestrator to pick up.
func (uc *AgentUseCase) CreateAgent(ctx context.Context, in CreateAgentInput) (*entity.Agent, error) {
	agent, err := entity.NewAgent(uuid.NewString(), in.Name)
	if err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	agent.Description = in.Description
	agent.Capabilities = in.Capabilities
	agent.Personality = in.Personality

	if err := uc.agents.Save(ctx, agent); err != nil {
		return nil, err
	}

	if in.FirstCommand != "" {
		uc.queue.Enqueue(service.GenerationRequest{
			AgentID:       agent.ID,
			Command:       in.FirstCommand,
			FirstPlan:     true,
			CorrelationID: uuid.NewString(),
		})
		uc.logger.Info("First command queued",
			zap.String("agent_id", agent.ID),
			zap.Int("queue_depth", uc.queue.Len()),
		)
	}

	return agent, nil
}

// ListAgents returns every agent.
func (uc *AgentUseCase) ListAgents(ctx context.Context) ([]*entity.Agent, error) {
	return uc.agents.FindAll(ctx)
}

// GetAgent returns one agent.
func (uc *AgentUseCase) GetAgent(ctx context.Context, id string) (*entity.Agent, error) {
	return uc.agents.FindByID(ctx, id)
}

// SubmitCommand accepts a command and generates a plan synchronously.
func (uc *AgentUseCase) SubmitCommand(ctx context.Context, agentID, command string) (*entity.Plan, error) {
	if command == "" {
		return nil, apperrors.NewInvalidInputError("command must not be empty")
	}
	plan, err := uc.lifecycle.ReceiveCommand(ctx, agentID, command)
	if err != nil {
		return nil, mapDomainError(err)
	}
	return plan, nil
}

// ApprovePlan approves the agent's current plan.
func (uc *AgentUseCase) ApprovePlan(ctx context.Context, agentID string) error {
	return mapDomainError(uc.lifecycle.ApprovePlan(ctx, agentID))
}

// RejectPlan rejects the agent's current plan.
func (uc *AgentUseCase) RejectPlan(ctx context.Context, agentID string) error {
	return mapDomainError(uc.lifecycle.RejectPlan(ctx, agentID))
}

// mapDomainError lifts entity sentinels into coded application errors
// so the HTTP layer can translate them to statuses.
func mapDomainError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, entity.ErrNoCurrentPlan):
		return apperrors.NewNotFoundError("agent has no current plan")
	case errors.Is(err, entity.ErrInvalidTransition):
		return apperrors.NewInvalidStateError(err.Error())
	case errors.Is(err, entity.ErrEmptyCommand):
		return apperrors.NewInvalidInputError(err.Error())
	}
	return err
}

// CurrentPlan returns the agent's current plan with its steps.
func (uc *AgentUseCase) CurrentPlan(ctx context.Context, agentID string) (*entity.Plan, error) {
	agent, err := uc.agents.FindByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if agent.CurrentPlanID == "" {
		return nil, apperrors.NewNotFoundError("agent has no current plan")
	}
	return uc.plans.FindByID(ctx, agent.CurrentPlanID)
}

// ReorderSteps rearranges the current plan's execution order. Legal
// only while the plan awaits approval, and the id list must cover the
// step set exactly.
func (uc *AgentUseCase) ReorderSteps(ctx context.Context, agentID string, stepIDs []string) (*entity.Plan, error) {
	plan, err := uc.CurrentPlan(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if plan.Status != entity.PlanAwaitingApproval {
		return nil, apperrors.NewInvalidStateError("steps can only be reordered while the plan awaits approval")
	}
	if err := plan.ReorderSteps(stepIDs); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	if err := uc.plans.Save(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// RecentRequests returns the newest audit records.
func (uc *AgentUseCase) RecentRequests(ctx context.Context, limit int) ([]*entity.RequestRecord, error) {
	return uc.requests.FindRecent(ctx, limit)
}

// AgentRequests returns the newest audit records for one agent.
func (uc *AgentUseCase) AgentRequests(ctx context.Context, agentID string, limit int) ([]*entity.RequestRecord, error) {
	return uc.requests.FindByAgent(ctx, agentID, limit)
}
