package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/planwright/planwright/internal/domain/entity"
	"github.com/planwright/planwright/internal/domain/repository"
	"github.com/planwright/planwright/pkg/errors"
)

// MemoryAgentRepository is an in-memory agent repository for
// development and tests. Agents are cloned on both Save and read so
// stored state cannot be mutated through shared pointers.
type MemoryAgentRepository struct {
	mu     sync.RWMutex
	agents map[string]*entity.Agent
}

// NewMemoryAgentRepository creates an in-memory agent repository.
func NewMemoryAgentRepository() repository.AgentRepository {
	return &MemoryAgentRepository{
		agents: make(map[string]*entity.Agent),
	}
}

// FindByID looks up an agent by its ID.
func (r *MemoryAgentRepository) FindByID(ctx context.Context, id string) (*entity.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, ok := r.agents[id]
	if !ok {
		return nil, errors.NewNotFoundError("agent not found")
	}
	return agent.Clone(), nil
}

// FindAll returns every agent, oldest first.
func (r *MemoryAgentRepository) FindAll(ctx context.Context) ([]*entity.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]*entity.Agent, 0, len(r.agents))
	for _, agent := range r.agents {
		agents = append(agents, agent.Clone())
	}
	sort.Slice(agents, func(i, j int) bool {
		return agents[i].CreatedAt.Before(agents[j].CreatedAt)
	})
	return agents, nil
}

// FindByStatus returns all agents in the given status.
func (r *MemoryAgentRepository) FindByStatus(ctx context.Context, status entity.AgentStatus) ([]*entity.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]*entity.Agent, 0)
	for _, agent := range r.agents {
		if agent.Status == status {
			agents = append(agents, agent.Clone())
		}
	}
	sort.Slice(agents, func(i, j int) bool {
		return agents[i].CreatedAt.Before(agents[j].CreatedAt)
	})
	return agents, nil
}

// Save creates or updates an agent.
func (r *MemoryAgentRepository) Save(ctx context.Context, agent *entity.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.agents[agent.ID] = agent.Clone()
	return nil
}

// Delete removes an agent.
func (r *MemoryAgentRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.agents[id]; !ok {
		return errors.NewNotFoundError("agent not found")
	}
	delete(r.agents, id)
	return nil
}
