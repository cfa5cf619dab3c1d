package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/planwright/planwright/internal/application/usecase"
	"go.uber.org/zap"
)

// AgentHandler exposes the agent lifecycle over HTTP.
type AgentHandler struct {
	uc     *usecase.AgentUseCase
	logger *zap.Logger
}

// NewAgentHandler creates an agent handler.
func NewAgentHandler(uc *usecase.AgentUseCase, logger *zap.Logger) *AgentHandler {
	return &AgentHandler{
		uc:     uc,
		logger: logger.With(zap.String("handler", "agent")),
	}
}

// CreateAgentRequest is the JSON body for POST /api/agents.
type CreateAgentRequest struct {
	Name         string   `json:"name" binding:"required"`
	Description  string   `json:"description,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	Personality  string   `json:"personality,omitempty"`

	// Command, when present, is queued for plan generation right after
	// creation.
	Command string `json:"command,omitempty"`
}

// CommandRequest is the JSON body for POST /api/agents/:id/command.
type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}

// ReorderRequest is the JSON body for POST /api/agents/:id/plan/reorder.
type ReorderRequest struct {
	StepIDs []string `json:"step_ids" binding:"required"`
}

// CreateAgent handles POST /api/agents.
func (h *AgentHandler) CreateAgent(c *gin.Context) {
	var req CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	agent, err := h.uc.CreateAgent(c.Request.Context(), usecase.CreateAgentInput{
		Name:         req.Name,
		Description:  req.Description,
		Capabilities: req.Capabilities,
		Personality:  req.Personality,
		FirstCommand: req.Command,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, agent)
}

// ListAgents handles GET /api/agents.
func (h *AgentHandler) ListAgents(c *gin.Context) {
	agents, err := h.uc.ListAgents(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

// GetAgent handles GET /api/agents/:id.
func (h *AgentHandler) GetAgent(c *gin.Context) {
	agent, err := h.uc.GetAgent(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, agent)
}

// SubmitCommand handles POST /api/agents/:id/command.
func (h *AgentHandler) SubmitCommand(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := h.uc.SubmitCommand(c.Request.Context(), c.Param("id"), req.Command)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// ApprovePlan handles POST /api/agents/:id/approve.
func (h *AgentHandler) ApprovePlan(c *gin.Context) {
	if err := h.uc.ApprovePlan(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "approved"})
}

// RejectPlan handles POST /api/agents/:id/reject.
func (h *AgentHandler) RejectPlan(c *gin.Context) {
	if err := h.uc.RejectPlan(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

// GetPlan handles GET /api/agents/:id/plan.
func (h *AgentHandler) GetPlan(c *gin.Context) {
	plan, err := h.uc.CurrentPlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// ReorderSteps handles POST /api/agents/:id/plan/reorder.
func (h *AgentHandler) ReorderSteps(c *gin.Context) {
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := h.uc.ReorderSteps(c.Request.Context(), c.Param("id"), req.StepIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}
