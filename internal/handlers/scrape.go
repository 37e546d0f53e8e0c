package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/webinsight/internal/logger"
	"github.com/jonesrussell/webinsight/internal/models"
	"github.com/jonesrussell/webinsight/internal/scraper"
)

const defaultSearchLimit = 10

// ScrapeHandler streams live search engine results as SSE.
type ScrapeHandler struct {
	registry *scraper.Registry
	logger   logger.Logger
}

// NewScrapeHandler creates a scrape handler.
func NewScrapeHandler(registry *scraper.Registry, log logger.Logger) *ScrapeHandler {
	return &ScrapeHandler{registry: registry, logger: log}
}

// SearchStream scrapes one engine for a keyword and emits each result
// as its own SSE event, terminated by the [DONE] sentinel. Results are
// not persisted here; the client submits kept ones to the save endpoint.
func (h *ScrapeHandler) SearchStream(c *gin.Context) {
	keyword := c.Query("keyword")
	if keyword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "keyword is required"})
		return
	}

	engine := c.DefaultQuery("engine", scraper.SourceBaiduWeb)
	s, err := h.registry.Get(engine)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limit := queryInt(c, "limit", defaultSearchLimit)

	setSSEHeaders(c)

	err = s.Search(c.Request.Context(), keyword, limit, func(res models.SearchResult) error {
		if !writeSSE(c, res) {
			return c.Request.Context().Err()
		}
		return nil
	})
	if err != nil {
		h.logger.Warn("search stream ended with error",
			logger.String("engine", engine),
			logger.String("keyword", keyword),
			logger.Error(err))
		writeSSE(c, gin.H{"error": "search failed"})
	}
	writeSSEDone(c)
}
