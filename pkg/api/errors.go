package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scriptorium/scriptorium/pkg/services"
)

// mapServiceError maps service-layer errors to HTTP error responses.
func mapServiceError(c *gin.Context, err error) {
	var validErr *services.ValidationError
	if errors.As(err, &validErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validErr.Error()})
		return
	}
	if errors.Is(err, services.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
		return
	}
	if errors.Is(err, services.ErrDuplicateActive) {
		c.JSON(http.StatusConflict, gin.H{"error": "topic already has an active generation"})
		return
	}
	if errors.Is(err, services.ErrTopicLinked) {
		c.JSON(http.StatusConflict, gin.H{"error": "topic is linked to a generation"})
		return
	}
	if errors.Is(err, services.ErrTopicNotSuggested) {
		c.JSON(http.StatusConflict, gin.H{"error": "topic is not in the suggestion pool"})
		return
	}

	// Unexpected error
	slog.Error("Unexpected service error", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
