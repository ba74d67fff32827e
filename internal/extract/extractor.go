// Package extract turns clinical notes into entity records by prompting an
// LLM for structured output and grounding each extraction in the note.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/jackzampolin/clinex/internal/annotation"
	"github.com/jackzampolin/clinex/internal/providers"
)

// ErrNoClient is returned when an Extractor has no LLM client.
var ErrNoClient = errors.New("extractor has no LLM client")

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second
	maxRetryDelay     = time.Minute
)

// Extractor produces predicted records for a note.
type Extractor struct {
	Client      providers.LLMClient
	Model       string // client default when empty
	Temperature float64
	MaxTokens   int

	// MaxRetries is the number of extra attempts after a retryable failure
	// (rate limit, server error, malformed output). Negative disables retries.
	MaxRetries int
	RetryDelay time.Duration

	Logger *slog.Logger
}

// Extract asks the model for the note's entities and grounds them to
// character offsets in text.
func (e *Extractor) Extract(ctx context.Context, text string) ([]annotation.Record, error) {
	if e.Client == nil {
		return nil, ErrNoClient
	}
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	req := e.request(text)
	attempts := uint(e.maxRetries() + 1)

	result, err := retry.DoWithData(
		func() (*providers.ChatResult, error) {
			return e.Client.Chat(ctx, req)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(e.retryDelay()),
		retry.MaxDelay(maxRetryDelay),
		retry.DelayType(func(n uint, err error, cfg *retry.Config) time.Duration {
			if d := providers.RetryAfter(err); d > 0 {
				return d
			}
			return retry.BackOffDelay(n, err, cfg)
		}),
		retry.RetryIf(providers.IsRetryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("extraction failed, retrying",
				"provider", e.Client.Name(),
				"attempt", n+1,
				"max_attempts", attempts,
				"error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	raw := result.ParsedJSON
	if len(raw) == 0 {
		raw = json.RawMessage(result.Content)
	}
	var resp response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", providers.ErrStructuredOutput, err)
	}

	items := make([]Item, 0, len(resp.Extractions))
	for _, it := range resp.Extractions {
		it.Class = strings.TrimSpace(it.Class)
		it.Text = strings.TrimSpace(it.Text)
		if it.Class == "" || it.Text == "" {
			continue
		}
		items = append(items, it)
	}

	records := ground(text, items)

	ungrounded := 0
	for _, r := range records {
		if !r.HasSpan() {
			ungrounded++
		}
	}
	logger.Debug("extraction complete",
		"provider", result.Provider,
		"model", result.ModelUsed,
		"request_id", result.RequestID,
		"records", len(records),
		"ungrounded", ungrounded,
		"dropped", len(resp.Extractions)-len(items),
		"tokens", result.TotalTokens,
		"duration", result.ExecutionTime)
	return records, nil
}

// request builds the chat request: system prompt, few-shot exchanges, then
// the note.
func (e *Extractor) request(text string) *providers.ChatRequest {
	examples := Examples()
	messages := make([]providers.Message, 0, 2+2*len(examples))
	messages = append(messages, providers.Message{Role: providers.RoleSystem, Content: ClinicalPrompt})
	for _, ex := range examples {
		answer, _ := json.Marshal(response{Extractions: ex.Items})
		messages = append(messages,
			providers.Message{Role: providers.RoleUser, Content: ex.Text},
			providers.Message{Role: providers.RoleAssistant, Content: string(answer)},
		)
	}
	messages = append(messages, providers.Message{Role: providers.RoleUser, Content: text})

	return &providers.ChatRequest{
		Messages:    messages,
		Model:       e.Model,
		Temperature: e.Temperature,
		MaxTokens:   e.MaxTokens,
		ResponseFormat: &providers.ResponseFormat{
			Type:       "json_schema",
			JSONSchema: json.RawMessage(responseSchema),
		},
	}
}

func (e *Extractor) maxRetries() int {
	switch {
	case e.MaxRetries < 0:
		return 0
	case e.MaxRetries == 0:
		return defaultMaxRetries
	}
	return e.MaxRetries
}

func (e *Extractor) retryDelay() time.Duration {
	if e.RetryDelay <= 0 {
		return defaultRetryDelay
	}
	return e.RetryDelay
}
