package handlers

import (
	"errors"
	"net/http"

	"container-inspection-api-server/internal/repository"

	"github.com/gin-gonic/gin"
)

// Notifier pushes a JSON message to every open connection of a user.
type Notifier interface {
	SendJSON(userID string, v any) error
}

// respondError maps repository errors onto HTTP statuses. Anything unknown is
// a 500 carrying msg and the error text.
func respondError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Trip segment not found"})
	case errors.Is(err, repository.ErrAlreadyCompleted):
		c.JSON(http.StatusConflict, gin.H{"error": "Trip segment is already completed"})
	case errors.Is(err, repository.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg, "details": err.Error()})
	}
}
