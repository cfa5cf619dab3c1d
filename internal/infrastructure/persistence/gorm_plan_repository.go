package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/planwright/planwright/internal/domain/entity"
	"github.com/planwright/planwright/internal/domain/repository"
	"github.com/planwright/planwright/internal/infrastructure/persistence/models"
	domainErrors "github.com/planwright/planwright/pkg/errors"
	"gorm.io/gorm"
)

// GormPlanRepository is the GORM-backed plan repository. Plans and
// their steps are written together in one transaction.
type GormPlanRepository struct {
	db *gorm.DB
}

// NewGormPlanRepository creates a GORM plan repository.
func NewGormPlanRepository(db *gorm.DB) repository.PlanRepository {
	return &GormPlanRepository{db: db}
}

// FindByID returns the plan with its steps in position order.
func (r *GormPlanRepository) FindByID(ctx context.Context, id string) (*entity.Plan, error) {
	var model models.PlanModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("plan not found")
		}
		return nil, domainErrors.NewInternalError("failed to find plan: " + err.Error())
	}

	return r.loadWithSteps(ctx, &model)
}

// FindCurrentByAgent returns the agent's most recent non-terminal plan.
func (r *GormPlanRepository) FindCurrentByAgent(ctx context.Context, agentID string) (*entity.Plan, error) {
	var model models.PlanModel
	err := r.db.WithContext(ctx).
		Where("agent_id = ? AND status IN ?", agentID, []string{
			string(entity.PlanAwaitingApproval),
			string(entity.PlanApproved),
			string(entity.PlanExecuting),
		}).
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("agent has no current plan")
		}
		return nil, domainErrors.NewInternalError("failed to find current plan: " + err.Error())
	}

	return r.loadWithSteps(ctx, &model)
}

// Save creates or updates a plan together with its steps.
func (r *GormPlanRepository) Save(ctx context.Context, plan *entity.Plan) error {
	model, err := toPlanModel(plan)
	if err != nil {
		return err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(model).Error; err != nil {
			return err
		}
		for _, step := range plan.Steps {
			if err := tx.Save(toStepModel(plan.ID, step)).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domainErrors.NewInternalError("failed to save plan: " + err.Error())
	}

	return nil
}

// ClaimForExecution atomically flips the plan from approved to
// executing. The conditional update makes concurrent claims lose
// cleanly: only one caller sees a row affected.
func (r *GormPlanRepository) ClaimForExecution(ctx context.Context, planID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PlanModel{}).
		Where("id = ? AND status = ?", planID, string(entity.PlanApproved)).
		Updates(map[string]any{
			"status":     string(entity.PlanExecuting),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, domainErrors.NewInternalError("failed to claim plan: " + result.Error.Error())
	}

	return result.RowsAffected == 1, nil
}

// AppendFollowUps adds follow-up suggestions to an existing plan.
func (r *GormPlanRepository) AppendFollowUps(ctx context.Context, planID string, items []string) error {
	if len(items) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.PlanModel
		if err := tx.First(&model, "id = ?", planID).Error; err != nil {
			return err
		}

		var followUps []string
		if model.FollowUps != "" {
			if err := json.Unmarshal([]byte(model.FollowUps), &followUps); err != nil {
				return err
			}
		}
		followUps = append(followUps, items...)

		encoded, err := json.Marshal(followUps)
		if err != nil {
			return err
		}

		return tx.Model(&model).Updates(map[string]any{
			"follow_ups":    string(encoded),
			"has_follow_up": true,
			"updated_at":    time.Now().UTC(),
		}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainErrors.NewNotFoundError("plan not found")
		}
		return domainErrors.NewInternalError("failed to append follow-ups: " + err.Error())
	}

	return nil
}

// --- Internal ---

func (r *GormPlanRepository) loadWithSteps(ctx context.Context, model *models.PlanModel) (*entity.Plan, error) {
	var stepModels []models.StepModel
	if err := r.db.WithContext(ctx).
		Where("plan_id = ?", model.ID).
		Order("position").
		Find(&stepModels).Error; err != nil {
		return nil, domainErrors.NewInternalError("failed to load plan steps: " + err.Error())
	}

	return toPlanEntity(model, stepModels)
}

// --- Conversion ---

func toPlanModel(plan *entity.Plan) (*models.PlanModel, error) {
	followUpsJSON, err := json.Marshal(plan.FollowUps)
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to encode follow-ups: " + err.Error())
	}

	return &models.PlanModel{
		ID:          plan.ID,
		AgentID:     plan.AgentID,
		Command:     plan.Command,
		Description: plan.Description,
		Reasoning:   plan.Reasoning,
		Status:      string(plan.Status),
		HasFollowUp: plan.HasFollowUp,
		FollowUps:   string(followUpsJSON),
		CreatedAt:   plan.CreatedAt,
		UpdatedAt:   plan.UpdatedAt,
	}, nil
}

func toStepModel(planID string, step *entity.Step) *models.StepModel {
	return &models.StepModel{
		ID:               step.ID,
		PlanID:           planID,
		Position:         step.Position,
		Description:      step.Description,
		Details:          step.Details,
		EstimatedSeconds: step.EstimatedSeconds,
		Status:           string(step.Status),
		Result:           step.Result,
		StartedAt:        step.StartedAt,
		FinishedAt:       step.FinishedAt,
	}
}

func toPlanEntity(model *models.PlanModel, stepModels []models.StepModel) (*entity.Plan, error) {
	var followUps []string
	if model.FollowUps != "" {
		if err := json.Unmarshal([]byte(model.FollowUps), &followUps); err != nil {
			return nil, domainErrors.NewInternalError("failed to decode follow-ups: " + err.Error())
		}
	}

	steps := make([]*entity.Step, 0, len(stepModels))
	for i := range stepModels {
		sm := &stepModels[i]
		steps = append(steps, &entity.Step{
			ID:               sm.ID,
			PlanID:           sm.PlanID,
			Position:         sm.Position,
			Description:      sm.Description,
			Details:          sm.Details,
			EstimatedSeconds: sm.EstimatedSeconds,
			Status:           entity.StepStatus(sm.Status),
			Result:           sm.Result,
			StartedAt:        sm.StartedAt,
			FinishedAt:       sm.FinishedAt,
		})
	}

	return &entity.Plan{
		ID:          model.ID,
		AgentID:     model.AgentID,
		Command:     model.Command,
		Description: model.Description,
		Reasoning:   model.Reasoning,
		Status:      entity.PlanStatus(model.Status),
		Steps:       steps,
		HasFollowUp: model.HasFollowUp,
		FollowUps:   followUps,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}, nil
}
