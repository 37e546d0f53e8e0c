package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/webinsight/internal/deepcrawl"
	"github.com/jonesrussell/webinsight/internal/ingest"
	"github.com/jonesrussell/webinsight/internal/logger"
	"github.com/jonesrussell/webinsight/internal/models"
	"github.com/jonesrussell/webinsight/internal/repository"
)

const (
	defaultPage    = 1
	defaultPerPage = 20
	maxPerPage     = 100
)

// ItemHandler serves the source item endpoints, including the
// deep-crawl progress stream.
type ItemHandler struct {
	repo         *repository.SourceItemRepository
	ingester     *ingest.Service
	orchestrator *deepcrawl.Orchestrator
	logger       logger.Logger
}

// NewItemHandler creates an item handler.
func NewItemHandler(
	repo *repository.SourceItemRepository,
	ingester *ingest.Service,
	orchestrator *deepcrawl.Orchestrator,
	log logger.Logger,
) *ItemHandler {
	return &ItemHandler{
		repo:         repo,
		ingester:     ingester,
		orchestrator: orchestrator,
		logger:       log,
	}
}

// Save ingests a batch of search results.
func (h *ItemHandler) Save(c *gin.Context) {
	var results []models.SearchResult
	if err := c.ShouldBindJSON(&results); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	summary, err := h.ingester.Ingest(c.Request.Context(), results)
	if err != nil {
		h.logger.Error("Failed to ingest items", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save items"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// List returns items with optional keyword filtering and pagination.
func (h *ItemHandler) List(c *gin.Context) {
	keyword := c.Query("keyword")
	page := queryInt(c, "page", defaultPage)
	perPage := queryInt(c, "per_page", defaultPerPage)
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	items, total, err := h.repo.List(c.Request.Context(), keyword, page, perPage)
	if err != nil {
		h.logger.Error("Failed to list items", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list items"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":    items,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

// Delete removes one item.
func (h *ItemHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item id"})
		return
	}

	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
			return
		}
		h.logger.Error("Failed to delete item", logger.Int64("item_id", id), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete item"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// BatchDelete removes several items at once.
func (h *ItemHandler) BatchDelete(c *gin.Context) {
	var req struct {
		IDs []int64 `json:"ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.repo.BatchDelete(c.Request.Context(), req.IDs); err != nil {
		h.logger.Error("Failed to batch delete items", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete items"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": len(req.IDs)})
}

// DeepCrawlStream runs a deep crawl over the requested ids and streams
// progress events as SSE, terminated by the [DONE] sentinel.
func (h *ItemHandler) DeepCrawlStream(c *gin.Context) {
	ids, err := parseIDList(c.Query("ids"))
	if err != nil || len(ids) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids must be a comma-separated list of item ids"})
		return
	}
	modelID := int64(queryInt(c, "model_id", 0))

	setSSEHeaders(c)

	for event := range h.orchestrator.Run(c.Request.Context(), ids, modelID) {
		if !writeSSE(c, event) {
			// Client went away; the orchestrator sees the context
			// cancellation and stops after the in-flight item.
			return
		}
	}
	writeSSEDone(c)
}

func parseIDList(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func queryInt(c *gin.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
