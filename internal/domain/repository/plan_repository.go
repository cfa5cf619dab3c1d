package repository

import (
	"context"

	"github.com/planwright/planwright/internal/domain/entity"
)

// PlanRepository is the persistence contract for plans and their steps.
type PlanRepository interface {
	// FindByID returns the plan with its steps or a NOT_FOUND error.
	FindByID(ctx context.Context, id string) (*entity.Plan, error)

	// FindCurrentByAgent returns the agent's most recent non-terminal
	// plan, or a NOT_FOUND error when none exists.
	FindCurrentByAgent(ctx context.Context, agentID string) (*entity.Plan, error)

	// Save creates or updates a plan together with its steps.
	Save(ctx context.Context, plan *entity.Plan) error

	// ClaimForExecution atomically flips the plan from approved to
	// executing. It reports false when the plan was not in approved
	// status, which makes the orchestrator's dispatch idempotent across
	// adjacent ticks.
	ClaimForExecution(ctx context.Context, planID string) (bool, error)

	// AppendFollowUps adds follow-up suggestions to an existing plan.
	AppendFollowUps(ctx context.Context, planID string, items []string) error
}
