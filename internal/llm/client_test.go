package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/webinsight/internal/llm"
	"github.com/jonesrussell/webinsight/internal/logger"
)

func TestComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req["model"])
		assert.InDelta(t, 0.1, req["temperature"], 0.001)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "hello"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
		}`))
	}))
	defer server.Close()

	client := llm.NewClient(logger.NewNop())
	backend := llm.Backend{Endpoint: server.URL + "/v1", Credential: "sk-test", Model: "test-model"}

	completion, err := client.Complete(context.Background(), backend, llm.Request{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		Temperature: 0.1,
	})
	require.NoError(t, err)

	assert.Equal(t, "hello", completion.Message.Content)
	require.NotNil(t, completion.Usage)
	assert.Equal(t, 15, completion.Usage.TotalTokens)
}

func TestCompleteWithToolCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "auto", req["tool_choice"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {
				"role": "assistant",
				"content": "",
				"tool_calls": [{
					"id": "call_1",
					"type": "function",
					"function": {"name": "execute_sql", "arguments": "{\"sql\": \"SELECT 1\"}"}
				}]
			}}]
		}`))
	}))
	defer server.Close()

	client := llm.NewClient(logger.NewNop())
	backend := llm.Backend{Endpoint: server.URL, Credential: "sk-test", Model: "test-model"}

	completion, err := client.Complete(context.Background(), backend, llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "how many rows?"}},
		Tools: []llm.Tool{{
			Type:     "function",
			Function: llm.ToolFunction{Name: "execute_sql"},
		}},
	})
	require.NoError(t, err)

	require.Len(t, completion.Message.ToolCalls, 1)
	call := completion.Message.ToolCalls[0]
	assert.Equal(t, "execute_sql", call.Function.Name)
	assert.JSONEq(t, `{"sql": "SELECT 1"}`, call.Function.Arguments)
}

func TestCompleteBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := llm.NewClient(logger.NewNop())
	backend := llm.Backend{Endpoint: server.URL, Credential: "sk-bad", Model: "test-model"}

	_, err := client.Complete(context.Background(), backend, llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)

	var backendErr *llm.BackendError
	require.True(t, errors.As(err, &backendErr))
	assert.Equal(t, http.StatusUnauthorized, backendErr.Status)
	assert.Contains(t, backendErr.Detail, "invalid api key")
}

func TestStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, true, req["stream"])

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(
			"data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n" +
				"data: not-json\n\n" +
				"data: {\"choices\":[],\"usage\":{\"prompt_tokens\":5,\"completion_tokens\":2,\"total_tokens\":7}}\n\n" +
				"data: [DONE]\n\n",
		))
	}))
	defer server.Close()

	client := llm.NewClient(logger.NewNop())
	backend := llm.Backend{Endpoint: server.URL, Credential: "sk-test", Model: "test-model"}

	var deltas []string
	full, usage, err := client.Stream(context.Background(), backend, llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	}, func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello", full)
	assert.Equal(t, []string{"Hel", "lo"}, deltas)
	require.NotNil(t, usage)
	assert.Equal(t, 7, usage.TotalTokens)
}

func TestStreamCallbackStops(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(
			"data: {\"choices\":[{\"delta\":{\"content\":\"one\"}}]}\n\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"two\"}}]}\n\n" +
				"data: [DONE]\n\n",
		))
	}))
	defer server.Close()

	client := llm.NewClient(logger.NewNop())
	backend := llm.Backend{Endpoint: server.URL, Credential: "sk-test", Model: "test-model"}

	stop := errors.New("stop")
	full, _, err := client.Stream(context.Background(), backend, llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	}, func(string) error {
		return stop
	})

	require.ErrorIs(t, err, stop)
	assert.Equal(t, "one", full)
}
