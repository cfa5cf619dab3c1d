package persistence

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/planwright/planwright/internal/domain/entity"
	"github.com/planwright/planwright/internal/domain/repository"
	"github.com/planwright/planwright/internal/infrastructure/persistence/models"
	domainErrors "github.com/planwright/planwright/pkg/errors"
	"gorm.io/gorm"
)

// GormAgentRepository is the GORM-backed agent repository.
type GormAgentRepository struct {
	db *gorm.DB
}

// NewGormAgentRepository creates a GORM agent repository.
func NewGormAgentRepository(db *gorm.DB) repository.AgentRepository {
	return &GormAgentRepository{db: db}
}

// FindByID looks up an agent by its ID.
func (r *GormAgentRepository) FindByID(ctx context.Context, id string) (*entity.Agent, error) {
	var model models.AgentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("agent not found")
		}
		return nil, domainErrors.NewInternalError("failed to find agent: " + err.Error())
	}

	return toAgentEntity(&model)
}

// FindAll returns every agent.
func (r *GormAgentRepository) FindAll(ctx context.Context) ([]*entity.Agent, error) {
	var modelList []models.AgentModel
	if err := r.db.WithContext(ctx).Order("created_at").Find(&modelList).Error; err != nil {
		return nil, domainErrors.NewInternalError("failed to find agents: " + err.Error())
	}

	agents := make([]*entity.Agent, 0, len(modelList))
	for i := range modelList {
		agent, err := toAgentEntity(&modelList[i])
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}

	return agents, nil
}

// FindByStatus returns all agents in the given status.
func (r *GormAgentRepository) FindByStatus(ctx context.Context, status entity.AgentStatus) ([]*entity.Agent, error) {
	var modelList []models.AgentModel
	if err := r.db.WithContext(ctx).Where("status = ?", string(status)).Order("created_at").Find(&modelList).Error; err != nil {
		return nil, domainErrors.NewInternalError("failed to find agents by status: " + err.Error())
	}

	agents := make([]*entity.Agent, 0, len(modelList))
	for i := range modelList {
		agent, err := toAgentEntity(&modelList[i])
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}

	return agents, nil
}

// Save creates or updates an agent.
func (r *GormAgentRepository) Save(ctx context.Context, agent *entity.Agent) error {
	model, err := toAgentModel(agent)
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save agent: " + err.Error())
	}

	return nil
}

// Delete removes an agent.
func (r *GormAgentRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.AgentModel{}, "id = ?", id)
	if result.Error != nil {
		return domainErrors.NewInternalError("failed to delete agent: " + result.Error.Error())
	}
	if result.RowsAffected == 0 {
		return domainErrors.NewNotFoundError("agent not found")
	}
	return nil
}

// --- Conversion ---

func toAgentModel(agent *entity.Agent) (*models.AgentModel, error) {
	capsJSON, err := json.Marshal(agent.Capabilities)
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to encode capabilities: " + err.Error())
	}
	settingsJSON, err := json.Marshal(agent.Settings)
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to encode settings: " + err.Error())
	}

	return &models.AgentModel{
		ID:            agent.ID,
		Name:          agent.Name,
		Description:   agent.Description,
		Status:        string(agent.Status),
		Capabilities:  string(capsJSON),
		Personality:   agent.Personality,
		Settings:      string(settingsJSON),
		CurrentPlanID: agent.CurrentPlanID,
		CreatedAt:     agent.CreatedAt,
		UpdatedAt:     agent.UpdatedAt,
	}, nil
}

func toAgentEntity(model *models.AgentModel) (*entity.Agent, error) {
	var caps []string
	if model.Capabilities != "" {
		if err := json.Unmarshal([]byte(model.Capabilities), &caps); err != nil {
			return nil, domainErrors.NewInternalError("failed to decode capabilities: " + err.Error())
		}
	}

	settings := make(map[string]string)
	if model.Settings != "" {
		if err := json.Unmarshal([]byte(model.Settings), &settings); err != nil {
			return nil, domainErrors.NewInternalError("failed to decode settings: " + err.Error())
		}
	}

	return &entity.Agent{
		ID:            model.ID,
		Name:          model.Name,
		Description:   model.Description,
		Status:        entity.AgentStatus(model.Status),
		Capabilities:  caps,
		Personality:   model.Personality,
		Settings:      settings,
		CurrentPlanID: model.CurrentPlanID,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}, nil
}
