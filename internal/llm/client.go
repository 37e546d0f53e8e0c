package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonesrussell/webinsight/internal/logger"
)

const (
	defaultTimeout = 120 * time.Second

	// maxErrorBodyBytes bounds how much of an error response we read back.
	maxErrorBodyBytes = 4 * 1024
)

// Client calls OpenAI-compatible chat-completion endpoints.
type Client struct {
	httpClient *http.Client
	logger     logger.Logger
}

// NewClient creates a new LLM client.
func NewClient(log logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     log,
	}
}

// Complete performs a blocking chat completion and returns the first choice.
func (c *Client) Complete(ctx context.Context, backend Backend, req Request) (*Completion, error) {
	body := wireRequest{
		Model:       backend.Model,
		Messages:    req.Messages,
		Tools:       req.Tools,
		Temperature: req.Temperature,
	}
	if len(req.Tools) > 0 {
		body.ToolChoice = "auto"
	}
	if req.JSONResponse {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	resp, err := c.post(ctx, backend, &body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, &BackendError{Detail: "response contained no choices"}
	}

	return &Completion{
		Message: out.Choices[0].Message,
		Usage:   out.Usage,
	}, nil
}

// Stream performs a streamed chat completion, invoking fn for every
// non-empty content delta. It returns the accumulated content and the
// usage reported in the terminal chunk, when the backend sends one.
func (c *Client) Stream(ctx context.Context, backend Backend, req Request, fn func(delta string) error) (string, *Usage, error) {
	body := wireRequest{
		Model:         backend.Model,
		Messages:      req.Messages,
		Temperature:   req.Temperature,
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
	}

	resp, err := c.post(ctx, backend, &body)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	var (
		full  strings.Builder
		usage *Usage
	)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		if payload == "[DONE]" {
			break
		}

		var chunk wireChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			c.logger.Warn("skipping malformed stream chunk", logger.Error(err))
			continue
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if err := fn(delta); err != nil {
			return full.String(), usage, err
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), usage, fmt.Errorf("read stream: %w", err)
	}

	return full.String(), usage, nil
}

func (c *Client) post(ctx context.Context, backend Backend, body *wireRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	url := strings.TrimSuffix(backend.Endpoint, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+backend.Credential)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &BackendError{Detail: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		resp.Body.Close()
		return nil, &BackendError{Status: resp.StatusCode, Detail: strings.TrimSpace(string(detail))}
	}

	return resp, nil
}
