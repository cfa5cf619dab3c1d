package repository

import (
	"context"

	"github.com/planwright/planwright/internal/domain/entity"
)

// AgentRepository is the persistence contract for agents.
// Defined in the domain layer, implemented in infrastructure.
type AgentRepository interface {
	// FindByID returns the agent or a NOT_FOUND error.
	FindByID(ctx context.Context, id string) (*entity.Agent, error)

	// FindAll returns all agents.
	FindAll(ctx context.Context) ([]*entity.Agent, error)

	// FindByStatus returns all agents in the given status.
	FindByStatus(ctx context.Context, status entity.AgentStatus) ([]*entity.Agent, error)

	// Save creates or updates an agent.
	Save(ctx context.Context, agent *entity.Agent) error

	// Delete removes an agent.
	Delete(ctx context.Context, id string) error
}
