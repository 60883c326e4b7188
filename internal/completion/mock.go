package completion

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Yates-Labs/llmkit/internal/params"
)

// MockProvider is a deterministic Provider for testing.
// It returns predictable responses based on the prompts it receives.
type MockProvider struct {
	// Response is returned by every Complete call when set.
	Response *RawResponse

	// Responses are returned in order, one per call, before Response is used.
	Responses []*RawResponse

	// Error, if set, is returned by Complete instead of a response.
	Error error

	// Model is reported in auto-generated responses. Defaults to the request model.
	Model string

	mu          sync.Mutex
	calls       int
	lastPrompts []string
	lastParams  params.Set
}

var _ Provider = (*MockProvider)(nil)

// NewMockProvider creates a mock that always returns resp.
func NewMockProvider(resp *RawResponse) *MockProvider {
	return &MockProvider{Response: resp}
}

// NewMockProviderWithError creates a mock that always fails with err.
func NewMockProviderWithError(err error) *MockProvider {
	return &MockProvider{Error: err}
}

// Name implements Named.
func (m *MockProvider) Name() string {
	return "Mock"
}

// Complete returns the configured response or generates a deterministic one.
func (m *MockProvider) Complete(ctx context.Context, prompts []string, p params.Set) (*RawResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.lastPrompts = append([]string(nil), prompts...)
	m.lastParams = p.Clone()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Error != nil {
		return nil, m.Error
	}

	if len(m.Responses) > 0 {
		resp := m.Responses[0]
		m.Responses = m.Responses[1:]
		return resp, nil
	}
	if m.Response != nil {
		return m.Response, nil
	}

	model := m.Model
	if model == "" {
		model = p.Model
	}
	return generateMockResponse(prompts, p.N, model), nil
}

// Calls returns how many times Complete was invoked.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastPrompts returns the prompts of the most recent call.
func (m *MockProvider) LastPrompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lastPrompts...)
}

// LastParams returns the parameters of the most recent call.
func (m *MockProvider) LastParams() params.Set {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastParams.Clone()
}

// generateMockResponse creates n choices per prompt with text derived from the
// prompt, and counts one token per whitespace-separated word.
func generateMockResponse(prompts []string, n int, model string) *RawResponse {
	if n < 1 {
		n = 1
	}

	resp := &RawResponse{
		ID:    "mock-completion",
		Model: model,
	}
	for i, prompt := range prompts {
		resp.Usage.PromptTokens += len(strings.Fields(prompt))
		for j := 0; j < n; j++ {
			text := fmt.Sprintf("completion %d for: %s", j, prompt)
			resp.Choices = append(resp.Choices, Choice{
				Text:         text,
				Index:        i*n + j,
				FinishReason: "stop",
			})
			resp.Usage.CompletionTokens += len(strings.Fields(text))
		}
	}
	resp.Usage.TotalTokens = resp.Usage.PromptTokens + resp.Usage.CompletionTokens
	return resp
}
