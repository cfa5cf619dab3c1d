package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/planwright/planwright/internal/domain/entity"
	"github.com/planwright/planwright/internal/domain/repository"
	"github.com/planwright/planwright/pkg/errors"
)

// MemoryPlanRepository is an in-memory plan repository for development
// and tests. The mutex doubles as the claim serializer, giving
// ClaimForExecution the same lose-cleanly behavior as the conditional
// UPDATE in the GORM implementation. Plans are cloned on both Save and
// read, matching the row/entity isolation of the GORM path.
type MemoryPlanRepository struct {
	mu    sync.RWMutex
	plans map[string]*entity.Plan
}

// NewMemoryPlanRepository creates an in-memory plan repository.
func NewMemoryPlanRepository() repository.PlanRepository {
	return &MemoryPlanRepository{
		plans: make(map[string]*entity.Plan),
	}
}

// FindByID returns the plan with its steps.
func (r *MemoryPlanRepository) FindByID(ctx context.Context, id string) (*entity.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plan, ok := r.plans[id]
	if !ok {
		return nil, errors.NewNotFoundError("plan not found")
	}
	return plan.Clone(), nil
}

// FindCurrentByAgent returns the agent's most recent non-terminal plan.
func (r *MemoryPlanRepository) FindCurrentByAgent(ctx context.Context, agentID string) (*entity.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var current *entity.Plan
	for _, plan := range r.plans {
		if plan.AgentID != agentID || plan.Status.IsTerminal() {
			continue
		}
		if current == nil || plan.CreatedAt.After(current.CreatedAt) {
			current = plan
		}
	}
	if current == nil {
		return nil, errors.NewNotFoundError("agent has no current plan")
	}
	return current.Clone(), nil
}

// Save creates or updates a plan together with its steps.
func (r *MemoryPlanRepository) Save(ctx context.Context, plan *entity.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.plans[plan.ID] = plan.Clone()
	return nil
}

// ClaimForExecution atomically flips the plan from approved to executing.
func (r *MemoryPlanRepository) ClaimForExecution(ctx context.Context, planID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	plan, ok := r.plans[planID]
	if !ok {
		return false, errors.NewNotFoundError("plan not found")
	}
	if plan.Status != entity.PlanApproved {
		return false, nil
	}

	plan.Status = entity.PlanExecuting
	plan.UpdatedAt = time.Now()
	return true, nil
}

// AppendFollowUps adds follow-up suggestions to an existing plan.
func (r *MemoryPlanRepository) AppendFollowUps(ctx context.Context, planID string, items []string) error {
	if len(items) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	plan, ok := r.plans[planID]
	if !ok {
		return errors.NewNotFoundError("plan not found")
	}
	plan.AppendFollowUps(items)
	return nil
}
