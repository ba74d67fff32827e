package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const testSchema = `{"name":"entities","strict":true,"schema":{
	"type":"object",
	"properties":{"items":{"type":"array","items":{"type":"string"}}},
	"required":["items"],
	"additionalProperties":false
}}`

func chatCompletionJSON(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
	return string(body)
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, payload map[string]any)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("unmarshal body: %v", err)
		}
		handler(w, r, payload)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestOpenAIChat_StructuredOutput(t *testing.T) {
	var payload map[string]any
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request, p map[string]any) {
		payload = p
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatCompletionJSON(`{"items":["aspirin"]}`))
	})

	client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL, Model: "test-model"})
	result, err := client.Chat(context.Background(), &ChatRequest{
		Messages:       []Message{{Role: RoleSystem, Content: "extract"}, {Role: RoleUser, Content: "aspirin"}},
		Temperature:    0.2,
		MaxTokens:      256,
		ResponseFormat: &ResponseFormat{Type: "json_schema", JSONSchema: json.RawMessage(testSchema)},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if !result.Success || string(result.ParsedJSON) != `{"items":["aspirin"]}` {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.TotalTokens != 15 || result.Attempts != 1 {
		t.Errorf("tokens=%d attempts=%d", result.TotalTokens, result.Attempts)
	}
	if got, _ := payload["model"].(string); got != "test-model" {
		t.Errorf("expected model test-model, got %q", got)
	}
	rf, _ := payload["response_format"].(map[string]any)
	if got, _ := rf["type"].(string); got != "json_schema" {
		t.Errorf("expected json_schema response format, got %v", payload["response_format"])
	}
	msgs, _ := payload["messages"].([]any)
	if len(msgs) != 2 {
		t.Errorf("expected 2 messages, got %d", len(msgs))
	}
}

func TestOpenAIChat_RepairsInvalidOutput(t *testing.T) {
	var calls atomic.Int32
	var lastMessages int
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request, p map[string]any) {
		n := calls.Add(1)
		msgs, _ := p["messages"].([]any)
		lastMessages = len(msgs)
		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			fmt.Fprint(w, chatCompletionJSON(`{"items": "not a list"}`))
			return
		}
		fmt.Fprint(w, chatCompletionJSON("```json\n{\"items\":[]}\n```"))
	})

	client := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: "k"})
	result, err := client.Chat(context.Background(), &ChatRequest{
		Messages:       []Message{{Role: RoleUser, Content: "x"}},
		ResponseFormat: &ResponseFormat{Type: "json_schema", JSONSchema: json.RawMessage(testSchema)},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if result.Attempts != 2 || lastMessages != 3 {
		t.Errorf("attempts=%d messages=%d, want 2 and 3", result.Attempts, lastMessages)
	}
	if string(result.ParsedJSON) != `{"items":[]}` {
		t.Errorf("ParsedJSON = %s", result.ParsedJSON)
	}
}

func TestOpenAIChat_GivesUpOnPersistentInvalidOutput(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request, p map[string]any) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatCompletionJSON("I cannot do that"))
	})

	client := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: "k"})
	result, err := client.Chat(context.Background(), &ChatRequest{
		Messages:       []Message{{Role: RoleUser, Content: "x"}},
		ResponseFormat: &ResponseFormat{Type: "json_schema", JSONSchema: json.RawMessage(testSchema)},
	})
	if !errors.Is(err, ErrStructuredOutput) {
		t.Fatalf("expected ErrStructuredOutput, got %v", err)
	}
	if result.Attempts != maxStructuredRepairAttempts+1 || result.ErrorType != "structured_output" {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestOpenAIChat_RateLimit(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request, p map[string]any) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"slow down","type":"rate_limit"}}`)
	})

	client := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: "k"})
	_, err := client.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})

	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %T: %v", err, err)
	}
	if rl.RetryAfter != 3*time.Second {
		t.Errorf("RetryAfter = %s, want 3s", rl.RetryAfter)
	}
	if !IsRetryable(err) {
		t.Error("rate limit should be retryable")
	}
}

func TestOpenAIChat_ClientError(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request, p map[string]any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
	})

	client := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: "k"})
	_, err := client.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})

	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 StatusError, got %v", err)
	}
	if IsRetryable(err) {
		t.Error("401 should not be retryable")
	}
}
