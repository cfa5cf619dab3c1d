package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/planwright/planwright/internal/application/usecase"
	"go.uber.org/zap"
)

// RequestHandler exposes the external-call audit log over HTTP.
type RequestHandler struct {
	uc     *usecase.AgentUseCase
	logger *zap.Logger
}

// NewRequestHandler creates a request log handler.
func NewRequestHandler(uc *usecase.AgentUseCase, logger *zap.Logger) *RequestHandler {
	return &RequestHandler{
		uc:     uc,
		logger: logger.With(zap.String("handler", "requests")),
	}
}

// ListRequests handles GET /api/requests. Optional query parameters:
// limit (default 50) and agent_id.
func (h *RequestHandler) ListRequests(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	ctx := c.Request.Context()
	if agentID := c.Query("agent_id"); agentID != "" {
		records, err := h.uc.AgentRequests(ctx, agentID, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"requests": records})
		return
	}

	records, err := h.uc.RecentRequests(ctx, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": records})
}
