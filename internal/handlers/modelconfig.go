package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/webinsight/internal/llm"
	"github.com/jonesrussell/webinsight/internal/logger"
	"github.com/jonesrussell/webinsight/internal/models"
	"github.com/jonesrussell/webinsight/internal/repository"
)

const chatTestTemperature = 0.7

// ModelConfigHandler serves the model backend endpoints. The stored
// credential never leaves the service: responses carry a masked form
// and an empty credential on update keeps the stored one.
type ModelConfigHandler struct {
	repo   *repository.ModelConfigRepository
	usage  *repository.TokenUsageRepository
	client *llm.Client
	logger logger.Logger
}

// NewModelConfigHandler creates a model config handler.
func NewModelConfigHandler(
	repo *repository.ModelConfigRepository,
	usage *repository.TokenUsageRepository,
	client *llm.Client,
	log logger.Logger,
) *ModelConfigHandler {
	return &ModelConfigHandler{repo: repo, usage: usage, client: client, logger: log}
}

// modelRequest is the write shape. Unlike the model, it accepts the
// credential in JSON.
type modelRequest struct {
	DisplayName     string `json:"display_name" binding:"required"`
	Endpoint        string `json:"endpoint"     binding:"required"`
	Credential      string `json:"credential"`
	ModelIdentifier string `json:"model_identifier" binding:"required"`
	SystemPrompt    string `json:"system_prompt"`
	ActiveFlag      bool   `json:"active_flag"`
}

// modelView is the read shape: the full config plus the masked
// credential, never the real one.
type modelView struct {
	*models.ModelConfig
	CredentialMasked string `json:"credential_masked"`
}

func viewOf(m *models.ModelConfig) modelView {
	return modelView{ModelConfig: m, CredentialMasked: m.MaskedCredential()}
}

// Create registers a new model backend.
func (h *ModelConfigHandler) Create(c *gin.Context) {
	var req modelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	m := &models.ModelConfig{
		DisplayName:     req.DisplayName,
		Endpoint:        req.Endpoint,
		Credential:      req.Credential,
		ModelIdentifier: req.ModelIdentifier,
		SystemPrompt:    req.SystemPrompt,
		ActiveFlag:      req.ActiveFlag,
	}
	if err := h.repo.Create(c.Request.Context(), m); err != nil {
		h.logger.Error("Failed to create model config", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create model"})
		return
	}

	c.JSON(http.StatusCreated, viewOf(m))
}

// List returns all model backends with masked credentials and token totals.
func (h *ModelConfigHandler) List(c *gin.Context) {
	configs, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list model configs", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list models"})
		return
	}

	views := make([]modelView, 0, len(configs))
	for i := range configs {
		views = append(views, viewOf(&configs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"models": views, "count": len(views)})
}

// Update edits a model backend. An empty credential keeps the stored one.
func (h *ModelConfigHandler) Update(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid model id"})
		return
	}

	var req modelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	m := &models.ModelConfig{
		ID:              id,
		DisplayName:     req.DisplayName,
		Endpoint:        req.Endpoint,
		Credential:      req.Credential,
		ModelIdentifier: req.ModelIdentifier,
		SystemPrompt:    req.SystemPrompt,
		ActiveFlag:      req.ActiveFlag,
	}
	if err := h.repo.Update(c.Request.Context(), m); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Model not found"})
			return
		}
		h.logger.Error("Failed to update model config", logger.Int64("model_id", id), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update model"})
		return
	}

	updated, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusOK, viewOf(m))
		return
	}
	c.JSON(http.StatusOK, viewOf(updated))
}

// Delete removes a model backend.
func (h *ModelConfigHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid model id"})
		return
	}

	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Model not found"})
			return
		}
		h.logger.Error("Failed to delete model config", logger.Int64("model_id", id), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete model"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// ChatTest sends one message to a backend and returns the full reply,
// for verifying a configuration end to end.
func (h *ModelConfigHandler) ChatTest(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid model id"})
		return
	}

	var req struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	m, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Model not found"})
		return
	}

	completion, err := h.client.Complete(c.Request.Context(), backendOf(m), llm.Request{
		Messages:    chatMessages(m, req.Message),
		Temperature: chatTestTemperature,
	})
	if err != nil {
		h.logger.Warn("Model chat test failed", logger.Int64("model_id", id), logger.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Model backend unreachable", "details": err.Error()})
		return
	}
	h.logUsage(c, m.ID, completion.Usage, req.Message, completion.Message.Content)

	c.JSON(http.StatusOK, gin.H{
		"reply": completion.Message.Content,
		"usage": completion.Usage,
	})
}

// ChatStream is a plain streaming chat against one backend, no tools,
// emitted as SSE content chunks and terminated by [DONE].
func (h *ModelConfigHandler) ChatStream(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid model id"})
		return
	}

	message := c.Query("message")
	if message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	m, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Model not found"})
		return
	}

	setSSEHeaders(c)

	full, usage, err := h.client.Stream(c.Request.Context(), backendOf(m), llm.Request{
		Messages:    chatMessages(m, message),
		Temperature: chatTestTemperature,
	}, func(delta string) error {
		if !writeSSE(c, gin.H{"content": delta}) {
			return c.Request.Context().Err()
		}
		return nil
	})
	if err != nil {
		h.logger.Warn("Model chat stream failed", logger.Int64("model_id", id), logger.Error(err))
		writeSSE(c, gin.H{"error": "model backend error"})
	}
	h.logUsage(c, m.ID, usage, message, full)
	writeSSEDone(c)
}

func (h *ModelConfigHandler) logUsage(c *gin.Context, modelID int64, usage *llm.Usage, prompt, reply string) {
	rec := &models.TokenUsageRecord{ModelID: modelID, TaskLabel: "chat_test"}
	if usage != nil {
		rec.PromptTokens = usage.PromptTokens
		rec.CompletionTokens = usage.CompletionTokens
		rec.TotalTokens = usage.TotalTokens
	} else {
		rec.PromptTokens = utf8.RuneCountInString(prompt) / 2
		rec.CompletionTokens = utf8.RuneCountInString(reply) / 2
	}

	if err := h.usage.Log(c.Request.Context(), rec); err != nil {
		h.logger.Error("Failed to log token usage", logger.Error(err))
	}
}

func backendOf(m *models.ModelConfig) llm.Backend {
	return llm.Backend{
		Endpoint:   m.Endpoint,
		Credential: m.Credential,
		Model:      m.ModelIdentifier,
	}
}

func chatMessages(m *models.ModelConfig, userMessage string) []llm.Message {
	messages := make([]llm.Message, 0, 2)
	if m.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: m.SystemPrompt})
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: userMessage})
}
