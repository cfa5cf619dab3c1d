package llm

import (
	"context"
	"unicode/utf8"

	"github.com/planwright/planwright/internal/domain/entity"
	"github.com/planwright/planwright/internal/domain/repository"
	"go.uber.org/zap"
)

// maxAuditTextLen bounds prompt and response text stored per record.
const maxAuditTextLen = 4000

// Recorder writes request audit records. Audit failures never reach the
// caller: a minimal record with the error annotated is attempted once,
// then the failure is logged and dropped.
type Recorder struct {
	repo   repository.RequestLogRepository
	logger *zap.Logger
}

// NewRecorder creates a recorder.
func NewRecorder(repo repository.RequestLogRepository, logger *zap.Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		logger: logger.With(zap.String("component", "request-recorder")),
	}
}

// Record persists one request record, truncating oversize payloads.
func (r *Recorder) Record(ctx context.Context, rec *entity.RequestRecord) {
	rec.Prompt = truncate(rec.Prompt, maxAuditTextLen)
	rec.Response = truncate(rec.Response, maxAuditTextLen)

	err := r.repo.Save(ctx, rec)
	if err == nil {
		return
	}

	r.logger.Warn("Request record write failed, retrying minimal record",
		zap.String("record_id", rec.ID),
		zap.Error(err),
	)

	minimal := &entity.RequestRecord{
		ID:        rec.ID,
		Provider:  rec.Provider,
		Model:     rec.Model,
		Operation: rec.Operation,
		Status:    rec.Status,
		Duration:  rec.Duration,
		AgentID:   rec.AgentID,
		PlanID:    rec.PlanID,
		ErrorText: truncate("audit degraded: "+err.Error(), 512),
		CreatedAt: rec.CreatedAt,
	}
	if merr := r.repo.Save(ctx, minimal); merr != nil {
		r.logger.Warn("Minimal request record write failed, dropping",
			zap.String("record_id", rec.ID),
			zap.Error(merr),
		)
	}
}

// truncate cuts s to at most max bytes, backing up to a rune boundary
// so the stored text stays valid UTF-8.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…[truncated]"
}
