package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/webinsight/internal/logger"
	"github.com/jonesrussell/webinsight/internal/repository"
)

// StatsHandler serves the aggregate counter endpoint.
type StatsHandler struct {
	repo   *repository.StatsRepository
	logger logger.Logger
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(repo *repository.StatsRepository, log logger.Logger) *StatsHandler {
	return &StatsHandler{repo: repo, logger: log}
}

// List returns all stat counters.
func (h *StatsHandler) List(c *gin.Context) {
	counters, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list stat counters", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": counters})
}
