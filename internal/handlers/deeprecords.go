package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/webinsight/internal/logger"
	"github.com/jonesrussell/webinsight/internal/models"
	"github.com/jonesrussell/webinsight/internal/repository"
)

// DeepRecordHandler serves the deep record endpoints.
type DeepRecordHandler struct {
	repo   *repository.DeepRecordRepository
	logger logger.Logger
}

// NewDeepRecordHandler creates a deep record handler.
func NewDeepRecordHandler(repo *repository.DeepRecordRepository, log logger.Logger) *DeepRecordHandler {
	return &DeepRecordHandler{repo: repo, logger: log}
}

// List returns deep records with optional keyword filtering and pagination.
func (h *DeepRecordHandler) List(c *gin.Context) {
	keyword := c.Query("keyword")
	page := queryInt(c, "page", defaultPage)
	perPage := queryInt(c, "per_page", defaultPerPage)
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	records, total, err := h.repo.List(c.Request.Context(), keyword, page, perPage)
	if err != nil {
		h.logger.Error("Failed to list deep records", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list deep records"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records":  records,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

// Update edits one deep record.
func (h *DeepRecordHandler) Update(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid record id"})
		return
	}

	var record models.DeepRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	record.ID = id

	if err := h.repo.Update(c.Request.Context(), &record); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
			return
		}
		h.logger.Error("Failed to update deep record", logger.Int64("record_id", id), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update record"})
		return
	}

	c.JSON(http.StatusOK, record)
}

// Delete removes one deep record and resets its item's crawl status.
func (h *DeepRecordHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid record id"})
		return
	}

	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
			return
		}
		h.logger.Error("Failed to delete deep record", logger.Int64("record_id", id), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete record"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// BatchDelete removes several deep records at once.
func (h *DeepRecordHandler) BatchDelete(c *gin.Context) {
	var req struct {
		IDs []int64 `json:"ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.repo.BatchDelete(c.Request.Context(), req.IDs); err != nil {
		h.logger.Error("Failed to batch delete deep records", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete records"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": len(req.IDs)})
}
