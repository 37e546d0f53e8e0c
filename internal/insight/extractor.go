// Package insight turns raw page text into a small structured summary
// using a chat-completion model.
package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonesrussell/webinsight/internal/llm"
	"github.com/jonesrussell/webinsight/internal/logger"
)

// extractionTemperature keeps structured output deterministic.
const extractionTemperature = 0.1

// jsonModeFragments names model families known to honor
// response_format json_object. Other backends reject the field, so they
// get plain prompting and the recovery parser instead.
var jsonModeFragments = []string{"deepseek", "gpt-4"}

const systemPrompt = `You are a precise information extraction engine.
Given the text of a web page, respond with a single JSON object and nothing else.
The object must have exactly these fields:
  "title": the page's main title,
  "summary": a one-sentence summary of at most 50 characters,
  "key_points": an array of 3 to 5 short strings with the most important points,
  "category": one word classifying the content (e.g. technology, finance, sports, science, entertainment, politics, health, other),
  "sentiment": one of "positive", "neutral" or "negative".
Do not wrap the JSON in markdown fences. Do not add commentary.`

// Insight is the structured summary extracted from one page.
type Insight struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Category  string   `json:"category"`
	Sentiment string   `json:"sentiment"`
}

// Extractor drives structured extraction through an LLM backend.
type Extractor struct {
	client *llm.Client
	logger logger.Logger
}

// NewExtractor creates a new extractor.
func NewExtractor(client *llm.Client, log logger.Logger) *Extractor {
	return &Extractor{client: client, logger: log}
}

// Extract summarizes pageText into an Insight. It returns the parsed
// insight, its canonical JSON encoding for storage, and the backend's
// reported token usage.
func (e *Extractor) Extract(ctx context.Context, backend llm.Backend, pageText string) (*Insight, json.RawMessage, *llm.Usage, error) {
	completion, err := e.client.Complete(ctx, backend, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: pageText},
		},
		Temperature:  extractionTemperature,
		JSONResponse: supportsJSONMode(backend.Model),
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("extract insight: %w", err)
	}

	parsed, err := parseInsight(completion.Message.Content)
	if err != nil {
		return nil, nil, completion.Usage, err
	}

	canonical, err := json.Marshal(parsed)
	if err != nil {
		return nil, nil, completion.Usage, fmt.Errorf("encode insight: %w", err)
	}

	return parsed, canonical, completion.Usage, nil
}

func supportsJSONMode(model string) bool {
	name := strings.ToLower(model)
	for _, fragment := range jsonModeFragments {
		if strings.Contains(name, fragment) {
			return true
		}
	}
	return false
}

// parseInsight decodes the model's output, recovering from the usual
// misbehavior: markdown fences and prose around the JSON object.
func parseInsight(raw string) (*Insight, error) {
	candidate := RecoverJSON(raw)
	if candidate == "" {
		return nil, fmt.Errorf("model output contained no JSON object")
	}

	var parsed Insight
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return nil, fmt.Errorf("decode insight JSON: %w", err)
	}
	if parsed.Title == "" && parsed.Summary == "" && len(parsed.KeyPoints) == 0 {
		return nil, fmt.Errorf("model output decoded to an empty insight")
	}

	return &parsed, nil
}

// RecoverJSON extracts the outermost JSON object from model output that
// may be wrapped in markdown fences or surrounded by prose. It returns
// "" when no object is present.
func RecoverJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if end := strings.LastIndex(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
