package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/webinsight/internal/analysis"
	"github.com/jonesrussell/webinsight/internal/logger"
	"github.com/jonesrussell/webinsight/internal/models"
	"github.com/jonesrussell/webinsight/internal/repository"
)

// AnalysisHandler serves the conversation engine and the conversation
// management endpoints.
type AnalysisHandler struct {
	engine        *analysis.Engine
	conversations *repository.ConversationRepository
	logger        logger.Logger
}

// NewAnalysisHandler creates an analysis handler.
func NewAnalysisHandler(
	engine *analysis.Engine,
	conversations *repository.ConversationRepository,
	log logger.Logger,
) *AnalysisHandler {
	return &AnalysisHandler{engine: engine, conversations: conversations, logger: log}
}

// ChatStream runs one conversation turn and streams the reply as SSE,
// terminated by the [DONE] sentinel.
func (h *AnalysisHandler) ChatStream(c *gin.Context) {
	var req analysis.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	setSSEHeaders(c)

	for chunk := range h.engine.ChatStream(c.Request.Context(), req) {
		if !writeSSE(c, chunk) {
			// Client went away; the engine still persists the turn.
			return
		}
	}
	writeSSEDone(c)
}

// CreateConversation starts an empty conversation ahead of the first
// turn, so clients can open a chat view before sending anything.
func (h *AnalysisHandler) CreateConversation(c *gin.Context) {
	var req struct {
		Title   string `json:"title"`
		ModelID int64  `json:"model_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if req.Title == "" {
		req.Title = "new conversation"
	}

	conv := &models.Conversation{Title: req.Title, ModelID: req.ModelID}
	if err := h.conversations.Create(c.Request.Context(), conv); err != nil {
		h.logger.Error("Failed to create conversation", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create conversation"})
		return
	}

	c.JSON(http.StatusCreated, conv)
}

// ListConversations returns all conversations, newest first.
func (h *AnalysisHandler) ListConversations(c *gin.Context) {
	conversations, err := h.conversations.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list conversations", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list conversations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations, "count": len(conversations)})
}

// GetConversation returns one conversation's messages in order.
func (h *AnalysisHandler) GetConversation(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation id"})
		return
	}

	messages, err := h.conversations.Messages(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load conversation",
			logger.Int64("conversation_id", id), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages, "count": len(messages)})
}

// DeleteConversation removes a conversation and its messages.
func (h *AnalysisHandler) DeleteConversation(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation id"})
		return
	}

	if err := h.conversations.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
			return
		}
		h.logger.Error("Failed to delete conversation",
			logger.Int64("conversation_id", id), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
