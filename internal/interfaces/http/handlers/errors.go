package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/planwright/planwright/pkg/errors"
)

// writeError maps domain error codes onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case apperrors.IsNotFound(err):
		status = http.StatusNotFound
	case apperrors.IsInvalidInput(err):
		status = http.StatusBadRequest
	case apperrors.IsInvalidState(err):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
