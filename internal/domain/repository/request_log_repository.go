package repository

import (
	"context"

	"github.com/planwright/planwright/internal/domain/entity"
)

// RequestLogRepository is the append-only audit sink for external call
// records. Implementations must tolerate and report write failures
// without crashing the caller.
type RequestLogRepository interface {
	// Save appends one request record.
	Save(ctx context.Context, record *entity.RequestRecord) error

	// FindRecent returns up to limit records, newest first.
	FindRecent(ctx context.Context, limit int) ([]*entity.RequestRecord, error)

	// FindByAgent returns up to limit records for one agent, newest first.
	FindByAgent(ctx context.Context, agentID string, limit int) ([]*entity.RequestRecord, error)
}
