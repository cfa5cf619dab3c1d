package persistence

import (
	"context"
	"time"

	"github.com/planwright/planwright/internal/domain/entity"
	"github.com/planwright/planwright/internal/domain/repository"
	"github.com/planwright/planwright/internal/infrastructure/persistence/models"
	domainErrors "github.com/planwright/planwright/pkg/errors"
	"gorm.io/gorm"
)

// GormRequestLogRepository is the GORM-backed append-only audit sink.
type GormRequestLogRepository struct {
	db *gorm.DB
}

// NewGormRequestLogRepository creates a GORM request log repository.
func NewGormRequestLogRepository(db *gorm.DB) repository.RequestLogRepository {
	return &GormRequestLogRepository{db: db}
}

// Save appends one request record.
func (r *GormRequestLogRepository) Save(ctx context.Context, record *entity.RequestRecord) error {
	if err := r.db.WithContext(ctx).Create(toRequestRecordModel(record)).Error; err != nil {
		return domainErrors.NewInternalError("failed to save request record: " + err.Error())
	}
	return nil
}

// FindRecent returns up to limit records, newest first.
func (r *GormRequestLogRepository) FindRecent(ctx context.Context, limit int) ([]*entity.RequestRecord, error) {
	return r.find(ctx, r.db.WithContext(ctx), limit)
}

// FindByAgent returns up to limit records for one agent, newest first.
func (r *GormRequestLogRepository) FindByAgent(ctx context.Context, agentID string, limit int) ([]*entity.RequestRecord, error) {
	return r.find(ctx, r.db.WithContext(ctx).Where("agent_id = ?", agentID), limit)
}

func (r *GormRequestLogRepository) find(ctx context.Context, tx *gorm.DB, limit int) ([]*entity.RequestRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	var modelList []models.RequestRecordModel
	if err := tx.Order("created_at DESC").Limit(limit).Find(&modelList).Error; err != nil {
		return nil, domainErrors.NewInternalError("failed to find request records: " + err.Error())
	}

	records := make([]*entity.RequestRecord, 0, len(modelList))
	for i := range modelList {
		records = append(records, toRequestRecordEntity(&modelList[i]))
	}
	return records, nil
}

// --- Conversion ---

func toRequestRecordModel(record *entity.RequestRecord) *models.RequestRecordModel {
	return &models.RequestRecordModel{
		ID:               record.ID,
		Provider:         record.Provider,
		Model:            record.Model,
		Operation:        record.Operation,
		Prompt:           record.Prompt,
		Response:         record.Response,
		PromptTokens:     record.PromptTokens,
		CompletionTokens: record.CompletionTokens,
		TotalTokens:      record.TotalTokens,
		CostUSD:          record.CostUSD,
		DurationMS:       record.Duration.Milliseconds(),
		Status:           string(record.Status),
		ErrorText:        record.ErrorText,
		ToolCalls:        record.ToolCalls,
		AgentID:          record.AgentID,
		PlanID:           record.PlanID,
		CreatedAt:        record.CreatedAt,
	}
}

func toRequestRecordEntity(model *models.RequestRecordModel) *entity.RequestRecord {
	return &entity.RequestRecord{
		ID:               model.ID,
		Provider:         model.Provider,
		Model:            model.Model,
		Operation:        model.Operation,
		Prompt:           model.Prompt,
		Response:         model.Response,
		PromptTokens:     model.PromptTokens,
		CompletionTokens: model.CompletionTokens,
		TotalTokens:      model.TotalTokens,
		CostUSD:          model.CostUSD,
		Duration:         time.Duration(model.DurationMS) * time.Millisecond,
		Status:           entity.RequestStatus(model.Status),
		ErrorText:        model.ErrorText,
		ToolCalls:        model.ToolCalls,
		AgentID:          model.AgentID,
		PlanID:           model.PlanID,
		CreatedAt:        model.CreatedAt,
	}
}
