// Package analysis implements the tool-calling conversation engine:
// one user turn becomes at most one SQL tool round-trip plus a streamed
// final answer, persisted incrementally to the conversation log.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/jonesrussell/webinsight/internal/llm"
	"github.com/jonesrussell/webinsight/internal/logger"
	"github.com/jonesrussell/webinsight/internal/models"
	"github.com/jonesrussell/webinsight/internal/repository"
	"github.com/jonesrussell/webinsight/internal/sqlguard"
)

const (
	planTemperature     = 0.1
	finalizeTemperature = 0.7

	// maxTitleRunes bounds the conversation title derived from the
	// first user message.
	maxTitleRunes = 30

	usageTaskLabel = "analysis_chat"
)

// Chunk is one streamed element of a chat turn.
type Chunk struct {
	Type           ChunkType `json:"type"`
	Content        string    `json:"content,omitempty"`
	ConversationID int64     `json:"conversation_id,omitempty"`
}

// ChunkType labels streamed chat chunks.
type ChunkType string

const (
	// ChunkConversation announces the conversation id (first chunk of a
	// turn that created a new conversation).
	ChunkConversation ChunkType = "conversation"
	// ChunkContent carries one fragment of assistant text.
	ChunkContent ChunkType = "content"
	// ChunkError carries a single user-visible failure message.
	ChunkError ChunkType = "error"
)

// ChatRequest is one user turn.
type ChatRequest struct {
	ConversationID int64  `json:"conversation_id"`
	ModelID        int64  `json:"model_id"`
	Message        string `json:"message"`
}

// turnState drives the per-turn state machine.
type turnState int

const (
	statePlanning turnState = iota
	stateToolExecuting
	stateFinalizing
	stateDone
)

// markerPattern matches the internal tool markers recorded in raw
// transcripts. Rendered content must never contain them.
var markerPattern = regexp.MustCompile(`(?s)<\|DSML\|call:execute_sql\(.*?\)\|>\n?`)

// Engine runs chat turns against a model backend with the SQL guard as
// its only tool.
type Engine struct {
	conversations *repository.ConversationRepository
	backends      *repository.ModelConfigRepository
	usage         *repository.TokenUsageRepository
	guard         *sqlguard.Guard
	client        *llm.Client
	logger        logger.Logger
}

// NewEngine creates a conversation engine.
func NewEngine(
	conversations *repository.ConversationRepository,
	backends *repository.ModelConfigRepository,
	usage *repository.TokenUsageRepository,
	guard *sqlguard.Guard,
	client *llm.Client,
	log logger.Logger,
) *Engine {
	return &Engine{
		conversations: conversations,
		backends:      backends,
		usage:         usage,
		guard:         guard,
		client:        client,
		logger:        log,
	}
}

// ChatStream runs one user turn and streams the assistant's reply over
// an unbuffered channel. The channel always closes; failures surface as
// a single error chunk first. The assistant message is persisted even
// when the turn fails partway, so the transcript never loses text that
// was already streamed.
func (e *Engine) ChatStream(ctx context.Context, req ChatRequest) <-chan Chunk {
	ch := make(chan Chunk)

	go func() {
		defer close(ch)
		e.runTurn(ctx, req, ch)
	}()

	return ch
}

func (e *Engine) runTurn(ctx context.Context, req ChatRequest, ch chan<- Chunk) {
	// Persistence outlives a disconnecting consumer.
	persistCtx := context.WithoutCancel(ctx)

	backend, err := e.backends.GetActive(ctx, req.ModelID)
	if err != nil {
		e.send(ctx, ch, Chunk{Type: ChunkError, Content: "no usable model backend configured"})
		return
	}

	conv, history, err := e.prepareConversation(persistCtx, req, backend.ID)
	if err != nil {
		e.logger.Error("failed to prepare conversation", logger.Error(err))
		e.send(ctx, ch, Chunk{Type: ChunkError, Content: "failed to prepare conversation"})
		return
	}
	e.send(ctx, ch, Chunk{Type: ChunkConversation, ConversationID: conv.ID})

	messages := e.buildMessages(backend, history, req.Message)

	// Everything streamed or recorded for the transcript accumulates
	// here; raw additionally keeps the internal tool markers.
	var content, raw string

	var (
		plan      *llm.Completion
		toolCalls []llm.ToolCall
		turnErr   error
	)

	wire := llm.Backend{Endpoint: backend.Endpoint, Credential: backend.Credential, Model: backend.ModelIdentifier}

	for state := statePlanning; state != stateDone; {
		switch state {
		case statePlanning:
			plan, turnErr = e.client.Complete(ctx, wire, llm.Request{
				Messages:    messages,
				Tools:       []llm.Tool{executeSQLTool},
				Temperature: planTemperature,
			})
			if turnErr != nil {
				state = stateDone
				break
			}
			e.logUsage(persistCtx, backend.ID, plan.Usage, messages)

			toolCalls = plan.Message.ToolCalls
			switch {
			case len(toolCalls) > 0:
				state = stateToolExecuting
			case plan.Message.Content != "":
				// Direct answer: the model needed no data.
				content = plan.Message.Content
				raw = plan.Message.Content
				e.streamText(ctx, ch, plan.Message.Content)
				state = stateDone
			default:
				// Neither tool call nor content. Last resort: plain stream.
				state = stateFinalizing
			}

		case stateToolExecuting:
			messages = append(messages, plan.Message)
			for _, call := range toolCalls {
				result, marker := e.executeTool(ctx, call)
				raw += marker
				messages = append(messages, llm.Message{
					Role:       llm.RoleTool,
					Content:    result,
					ToolCallID: call.ID,
				})
			}
			messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: antiLeakPrompt})
			state = stateFinalizing

		case stateFinalizing:
			streamed, usage, err := e.client.Stream(ctx, wire, llm.Request{
				Messages:    messages,
				Temperature: finalizeTemperature,
			}, func(delta string) error {
				if !e.send(ctx, ch, Chunk{Type: ChunkContent, Content: delta}) {
					return ctx.Err()
				}
				return nil
			})
			content += streamed
			raw += streamed
			e.logUsage(persistCtx, backend.ID, usage, messages)
			turnErr = err
			state = stateDone
		}
	}

	if turnErr != nil {
		e.logger.Error("chat turn failed",
			logger.Int64("conversation_id", conv.ID),
			logger.Error(turnErr))
		e.send(ctx, ch, Chunk{Type: ChunkError, Content: userFacingError(turnErr)})
	}

	// Persist whatever the turn produced, even a partial answer.
	assistant := &models.Message{
		ConversationID: conv.ID,
		Role:           models.RoleAssistant,
		Content:        StripMarkers(content),
		RawContent:     raw,
	}
	if err := e.conversations.AppendMessage(persistCtx, assistant); err != nil {
		e.logger.Error("failed to persist assistant message",
			logger.Int64("conversation_id", conv.ID),
			logger.Error(err))
	}
}

// prepareConversation creates the conversation when needed, loads prior
// history, and persists the user message.
func (e *Engine) prepareConversation(ctx context.Context, req ChatRequest, modelID int64) (*models.Conversation, []models.Message, error) {
	conv := &models.Conversation{ID: req.ConversationID}

	var history []models.Message
	if conv.ID == 0 {
		conv.Title = truncateRunes(req.Message, maxTitleRunes)
		conv.ModelID = modelID
		if err := e.conversations.Create(ctx, conv); err != nil {
			return nil, nil, err
		}
	} else {
		var err error
		history, err = e.conversations.Messages(ctx, conv.ID)
		if err != nil {
			return nil, nil, err
		}
	}

	userMsg := &models.Message{
		ConversationID: conv.ID,
		Role:           models.RoleUser,
		Content:        req.Message,
		RawContent:     req.Message,
	}
	if err := e.conversations.AppendMessage(ctx, userMsg); err != nil {
		return nil, nil, err
	}

	return conv, history, nil
}

// buildMessages assembles the planning-call message list: schema
// context, optional per-backend system prompt, prior turns, then the
// new user message.
func (e *Engine) buildMessages(backend *models.ModelConfig, history []models.Message, userMessage string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+3)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: schemaContext})
	if backend.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: backend.SystemPrompt})
	}
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userMessage})
	return messages
}

// executeTool runs one guarded SQL call. It returns the tool result to
// feed back to the model and the internal marker recording the literal
// query for the raw transcript.
func (e *Engine) executeTool(ctx context.Context, call llm.ToolCall) (result, marker string) {
	var args struct {
		SQL string `json:"sql"`
	}
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		return fmt.Sprintf(`{"error": "invalid tool arguments: %s"}`, err), ""
	}

	marker = Marker(args.SQL)

	res, err := e.guard.Execute(ctx, args.SQL)
	if err != nil {
		// Guard rejections go back to the model as tool errors; the
		// model can rephrase or answer without data.
		return fmt.Sprintf(`{"error": %q}`, err.Error()), marker
	}

	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error()), marker
	}
	return string(payload), marker
}

func (e *Engine) streamText(ctx context.Context, ch chan<- Chunk, text string) {
	e.send(ctx, ch, Chunk{Type: ChunkContent, Content: text})
}

func (e *Engine) logUsage(ctx context.Context, modelID int64, usage *llm.Usage, messages []llm.Message) {
	rec := &models.TokenUsageRecord{ModelID: modelID, TaskLabel: usageTaskLabel}
	if usage != nil {
		rec.PromptTokens = usage.PromptTokens
		rec.CompletionTokens = usage.CompletionTokens
		rec.TotalTokens = usage.TotalTokens
	} else {
		for _, m := range messages {
			rec.PromptTokens += estimateTokens(m.Content)
		}
	}

	if err := e.usage.Log(ctx, rec); err != nil {
		e.logger.Error("failed to log token usage", logger.Error(err))
	}
}

func (e *Engine) send(ctx context.Context, ch chan<- Chunk, chunk Chunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// Marker is the internal transcript marker recording one tool call's
// literal query. It appears in raw_content only.
func Marker(sql string) string {
	return fmt.Sprintf("<|DSML|call:execute_sql(%s)|>\n", sql)
}

// StripMarkers removes internal tool markers from text destined for the
// rendered transcript.
func StripMarkers(s string) string {
	return markerPattern.ReplaceAllString(s, "")
}

func userFacingError(err error) string {
	var backendErr *llm.BackendError
	if errors.As(err, &backendErr) {
		return "the model backend is unavailable, please try again later"
	}
	return "the assistant failed to complete this turn"
}

func estimateTokens(s string) int {
	return utf8.RuneCountInString(s) / 2
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
