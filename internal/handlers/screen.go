package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/webinsight/internal/logger"
	"github.com/jonesrussell/webinsight/internal/models"
	"github.com/jonesrussell/webinsight/internal/repository"
)

const (
	trendDays     = 7
	keywordDays   = 7
	keywordTitles = 200
	keywordLimit  = 10
	deepRankLimit = 5

	// keywordGramRunes is the shingle width; gramsPerTitle caps how many
	// shingles each title contributes so long titles don't dominate.
	keywordGramRunes = 4
	gramsPerTitle    = 5
)

// ScreenHandler serves the dashboard aggregate endpoints.
type ScreenHandler struct {
	repo   *repository.AnalyticsRepository
	logger logger.Logger
}

// NewScreenHandler creates a screen handler.
func NewScreenHandler(repo *repository.AnalyticsRepository, log logger.Logger) *ScreenHandler {
	return &ScreenHandler{repo: repo, logger: log}
}

// Overview returns collection volume by period plus the per-engine
// breakdown.
func (h *ScreenHandler) Overview(c *gin.Context) {
	overview, err := h.repo.Overview(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to load screen overview", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load overview"})
		return
	}

	c.JSON(http.StatusOK, overview)
}

// Trend returns the per-day collection counts for the last week.
func (h *ScreenHandler) Trend(c *gin.Context) {
	points, err := h.repo.DailyTrend(c.Request.Context(), trendDays)
	if err != nil {
		h.logger.Error("Failed to load collection trend", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load trend"})
		return
	}

	c.JSON(http.StatusOK, points)
}

// Keywords ranks frequent keywords across recent item titles.
func (h *ScreenHandler) Keywords(c *gin.Context) {
	titles, err := h.repo.RecentTitles(c.Request.Context(), keywordDays, keywordTitles)
	if err != nil {
		h.logger.Error("Failed to load titles for keyword ranking", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load keywords"})
		return
	}

	c.JSON(http.StatusOK, topKeywords(titles, keywordLimit))
}

// DeepRank returns the newest successfully deep-crawled items.
func (h *ScreenHandler) DeepRank(c *gin.Context) {
	entries, err := h.repo.DeepRank(c.Request.Context(), deepRankLimit)
	if err != nil {
		h.logger.Error("Failed to load deep-crawl ranking", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load deep rank"})
		return
	}

	c.JSON(http.StatusOK, entries)
}

// topKeywords ranks fixed-width rune shingles from the leading part of
// each title. Crude but language-agnostic, which matters for CJK
// titles with no word boundaries.
func topKeywords(titles []string, limit int) []models.KeywordCount {
	counts := make(map[string]int)
	for _, title := range titles {
		runes := []rune(title)
		for i := 0; i+keywordGramRunes <= len(runes) && i < gramsPerTitle; i++ {
			counts[string(runes[i:i+keywordGramRunes])]++
		}
	}

	ranked := make([]models.KeywordCount, 0, len(counts))
	for keyword, count := range counts {
		ranked = append(ranked, models.KeywordCount{Keyword: keyword, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Keyword < ranked[j].Keyword
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
