package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

const MockClientName = "mock"

// MockClient is an LLMClient for testing. It answers with Responses in
// order (repeating the last one), or ResponseText when Responses is empty.
type MockClient struct {
	Responses    []string
	ResponseText string

	// FailTimes makes the first N calls return Err (or a generic error).
	FailTimes int
	Err       error

	mu       sync.Mutex
	requests []*ChatRequest
}

// NewMockClient creates a mock that returns content for every call.
func NewMockClient(content ...string) *MockClient {
	return &MockClient{Responses: content}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Requests returns the requests received so far.
func (c *MockClient) Requests() []*ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*ChatRequest(nil), c.requests...)
}

// Chat records the request and returns the next canned response.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	c.mu.Lock()
	c.requests = append(c.requests, req)
	n := len(c.requests)
	c.mu.Unlock()

	result := &ChatResult{
		RequestID: fmt.Sprintf("mock-%d", n),
		Provider:  MockClientName,
		ModelUsed: req.Model,
		Attempts:  1,
	}

	if err := ctx.Err(); err != nil {
		return fail(result, start, "context_cancelled", err)
	}
	if n <= c.FailTimes {
		err := c.Err
		if err == nil {
			err = fmt.Errorf("mock client configured to fail")
		}
		return fail(result, start, "mock_failure", err)
	}

	content := c.ResponseText
	if len(c.Responses) > 0 {
		idx := min(n-1-c.FailTimes, len(c.Responses)-1)
		content = c.Responses[idx]
	}

	result.Content = content
	if req.ResponseFormat != nil {
		parsed, err := parseStructuredJSON(content)
		if err != nil {
			return fail(result, start, "structured_output", err)
		}
		result.ParsedJSON = json.RawMessage(parsed)
	}
	result.Success = true
	result.ExecutionTime = time.Since(start)
	return result, nil
}

var _ LLMClient = (*MockClient)(nil)
