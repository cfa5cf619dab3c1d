package persistence

import (
	"context"
	"sync"

	"github.com/planwright/planwright/internal/domain/entity"
	"github.com/planwright/planwright/internal/domain/repository"
)

// MemoryRequestLogRepository is an in-memory append-only audit sink for
// development and tests.
type MemoryRequestLogRepository struct {
	mu      sync.RWMutex
	records []*entity.RequestRecord
}

// NewMemoryRequestLogRepository creates an in-memory request log.
func NewMemoryRequestLogRepository() repository.RequestLogRepository {
	return &MemoryRequestLogRepository{}
}

// Save appends one request record.
func (r *MemoryRequestLogRepository) Save(ctx context.Context, record *entity.RequestRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, record)
	return nil
}

// FindRecent returns up to limit records, newest first.
func (r *MemoryRequestLogRepository) FindRecent(ctx context.Context, limit int) ([]*entity.RequestRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(limit, func(*entity.RequestRecord) bool { return true }), nil
}

// FindByAgent returns up to limit records for one agent, newest first.
func (r *MemoryRequestLogRepository) FindByAgent(ctx context.Context, agentID string, limit int) ([]*entity.RequestRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(limit, func(rec *entity.RequestRecord) bool {
		return rec.AgentID == agentID
	}), nil
}

func (r *MemoryRequestLogRepository) collect(limit int, match func(*entity.RequestRecord) bool) []*entity.RequestRecord {
	if limit <= 0 {
		limit = 50
	}

	out := make([]*entity.RequestRecord, 0, limit)
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		if match(r.records[i]) {
			out = append(out, r.records[i])
		}
	}
	return out
}
