package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	OpenAIName         = "openai"
	openAIDefaultModel = "gpt-4o-mini"
)

// OpenAIConfig holds configuration for the OpenAI-compatible chat client.
// BaseURL points the client at any compatible endpoint (OpenRouter, a local
// Ollama server, ...).
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client // Optional (tests)
}

// OpenAIClient implements LLMClient using the official OpenAI SDK.
type OpenAIClient struct {
	model  string
	client openai.Client
}

// NewOpenAIClient creates a new chat client. SDK-level retries are disabled;
// callers decide when to retry.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		model:  cfg.Model,
		client: openai.NewClient(opts...),
	}
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string {
	return OpenAIName
}

// Model returns the configured default model.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Chat sends a chat completion request. When a response format is set, the
// output is parsed and validated against its schema; invalid output is sent
// back to the model with a repair prompt up to maxStructuredRepairAttempts
// times before ErrStructuredOutput is returned.
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	model := req.Model
	if model == "" {
		model = c.model
	}

	result := &ChatResult{
		RequestID: requestID,
		Provider:  OpenAIName,
		ModelUsed: model,
	}

	var wrapper schemaWrapper
	if req.ResponseFormat != nil {
		var err error
		if wrapper, err = unwrapSchema(req.ResponseFormat.JSONSchema); err != nil {
			return fail(result, start, "schema", err)
		}
	}

	messages := append([]Message(nil), req.Messages...)
	var lastErr error
	for attempt := 0; attempt <= maxStructuredRepairAttempts; attempt++ {
		params, err := buildParams(model, req, messages, wrapper)
		if err != nil {
			return fail(result, start, "schema", err)
		}

		result.Attempts++
		resp, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return fail(result, start, "http_error", mapOpenAIError(err))
		}
		if len(resp.Choices) == 0 {
			return fail(result, start, "empty_response", fmt.Errorf("no choices in response"))
		}

		content := resp.Choices[0].Message.Content
		result.Content = content
		if resp.Model != "" {
			result.ModelUsed = resp.Model
		}
		result.PromptTokens += int(resp.Usage.PromptTokens)
		result.CompletionTokens += int(resp.Usage.CompletionTokens)
		result.TotalTokens += int(resp.Usage.TotalTokens)

		if req.ResponseFormat == nil {
			break
		}

		parsed, perr := parseStructuredJSON(content)
		if perr == nil {
			perr = validateStructuredJSON(wrapper.Schema, parsed)
		}
		if perr == nil {
			result.ParsedJSON = parsed
			lastErr = nil
			break
		}

		lastErr = perr
		messages = append(messages,
			Message{Role: RoleAssistant, Content: content},
			Message{Role: RoleUser, Content: structuredRepairPrompt(wrapper.Schema, content, perr)},
		)
	}

	if lastErr != nil {
		return fail(result, start, "structured_output", lastErr)
	}

	result.Success = true
	result.ExecutionTime = time.Since(start)
	return result, nil
}

func fail(result *ChatResult, start time.Time, errType string, err error) (*ChatResult, error) {
	result.Success = false
	result.ErrorType = errType
	result.ErrorMessage = err.Error()
	result.ExecutionTime = time.Since(start)
	return result, err
}

func buildParams(model string, req *ChatRequest, messages []Message, wrapper schemaWrapper) (openai.ChatCompletionNewParams, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
	}

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	if req.ResponseFormat != nil && len(wrapper.Schema) > 0 {
		var schema map[string]any
		if err := json.Unmarshal(wrapper.Schema, &schema); err != nil {
			return params, fmt.Errorf("invalid structured schema JSON: %w", err)
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   wrapper.Name,
					Schema: schema,
					Strict: openai.Bool(wrapper.Strict),
				},
			},
		}
	}
	return params, nil
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	if apiErr.StatusCode == http.StatusTooManyRequests {
		var retryAfter time.Duration
		if apiErr.Response != nil {
			retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		return &RateLimitError{
			Message:    fmt.Sprintf("rate limited: %s", apiErr.Message),
			RetryAfter: retryAfter,
			StatusCode: apiErr.StatusCode,
		}
	}
	return &StatusError{StatusCode: apiErr.StatusCode, Message: apiErr.Message}
}

var _ LLMClient = (*OpenAIClient)(nil)
