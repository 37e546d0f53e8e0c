// Package api builds the HTTP router and its middleware stack.
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jonesrussell/webinsight/internal/config"
	"github.com/jonesrussell/webinsight/internal/handlers"
	"github.com/jonesrussell/webinsight/internal/logger"
)

const corsMaxAgeHours = 12

// requestIDHeader carries the per-request correlation id.
const requestIDHeader = "X-Request-ID"

// Handlers groups everything the router mounts.
type Handlers struct {
	Items       *handlers.ItemHandler
	DeepRecords *handlers.DeepRecordHandler
	Models      *handlers.ModelConfigHandler
	Analysis    *handlers.AnalysisHandler
	Scrape      *handlers.ScrapeHandler
	Stats       *handlers.StatsHandler
	Screen      *handlers.ScreenHandler
}

// NewRouter builds the gin engine with the full API surface.
func NewRouter(cfg *config.Config, h Handlers, log logger.Logger) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// CORS middleware - must be first
	router.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Content-Length", "Accept-Encoding",
			"X-CSRF-Token", "Authorization", "accept", "origin",
			"Cache-Control", "X-Requested-With",
		},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           corsMaxAgeHours * time.Hour,
	}))

	router.Use(requestID())
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	v1.GET("/search/stream", h.Scrape.SearchStream)

	items := v1.Group("/items")
	items.POST("/save", h.Items.Save)
	items.GET("", h.Items.List)
	items.DELETE("/:id", h.Items.Delete)
	items.POST("/batch-delete", h.Items.BatchDelete)
	items.GET("/deep-crawl/stream", h.Items.DeepCrawlStream)

	records := v1.Group("/deep-records")
	records.GET("", h.DeepRecords.List)
	records.PUT("/:id", h.DeepRecords.Update)
	records.DELETE("/:id", h.DeepRecords.Delete)
	records.POST("/batch-delete", h.DeepRecords.BatchDelete)

	modelsGroup := v1.Group("/models")
	modelsGroup.GET("", h.Models.List)
	modelsGroup.POST("", h.Models.Create)
	modelsGroup.PUT("/:id", h.Models.Update)
	modelsGroup.DELETE("/:id", h.Models.Delete)
	modelsGroup.POST("/:id/chat-test", h.Models.ChatTest)
	modelsGroup.GET("/:id/chat/stream", h.Models.ChatStream)

	analysisGroup := v1.Group("/analysis")
	analysisGroup.POST("/chat/stream", h.Analysis.ChatStream)
	analysisGroup.GET("/conversations", h.Analysis.ListConversations)
	analysisGroup.POST("/conversations", h.Analysis.CreateConversation)
	analysisGroup.GET("/conversations/:id", h.Analysis.GetConversation)
	analysisGroup.DELETE("/conversations/:id", h.Analysis.DeleteConversation)

	v1.GET("/stats", h.Stats.List)

	screen := v1.Group("/screen")
	screen.GET("/overview", h.Screen.Overview)
	screen.GET("/trend", h.Screen.Trend)
	screen.GET("/keywords", h.Screen.Keywords)
	screen.GET("/deep-rank", h.Screen.DeepRank)

	return router
}

// requestID tags every request with a correlation id, generating one
// when the client did not send its own.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

func ginLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		log.Info("HTTP request",
			logger.String("method", method),
			logger.String("path", path),
			logger.Int("status_code", c.Writer.Status()),
			logger.String("client_ip", c.ClientIP()),
			logger.String("request_id", c.Writer.Header().Get(requestIDHeader)),
			logger.Duration("duration", time.Since(start)),
		)
	}
}
