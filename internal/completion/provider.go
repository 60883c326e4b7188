// Package completion defines the contract between the LLM wrapper and the
// services that produce completions. Implementations live under
// internal/provider; a deterministic mock lives here for tests.
package completion

import (
	"context"

	"github.com/Yates-Labs/llmkit/internal/params"
)

// Provider produces completions for a batch of prompts.
// Implementations must be safe for concurrent use and respect ctx cancellation.
type Provider interface {
	// Complete returns the choices for every prompt in a single logical
	// operation. How many network calls that takes is up to the provider.
	Complete(ctx context.Context, prompts []string, p params.Set) (*RawResponse, error)
}

// Named is implemented by providers that report a display name.
type Named interface {
	Name() string
}

// RawResponse is the provider output the wrapper assembles results from.
type RawResponse struct {
	ID      string   `json:"id,omitempty"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`

	// Cached is set when the response was served without calling the service.
	Cached bool `json:"cached,omitempty"`

	// Missing lists required response-level fields absent from the wire response.
	Missing []string `json:"missing,omitempty"`
}

// Incomplete reports whether the response or any of its choices lacks a
// required field.
func (r *RawResponse) Incomplete() bool {
	if len(r.Missing) > 0 {
		return true
	}
	for _, c := range r.Choices {
		if len(c.Missing) > 0 {
			return true
		}
	}
	return false
}

// Choice is one generated completion. Index maps it back to its prompt:
// with n completions per prompt, choice i belongs to prompt i/n.
type Choice struct {
	Text         string    `json:"text"`
	Index        int       `json:"index"`
	FinishReason string    `json:"finish_reason,omitempty"`
	Logprobs     *Logprobs `json:"logprobs,omitempty"`

	// Missing lists required fields that were absent from the wire response.
	Missing []string `json:"missing,omitempty"`
}

// Logprobs carries per-token log-probabilities when the service reports them.
type Logprobs struct {
	Tokens        []string             `json:"tokens,omitempty"`
	TokenLogprobs []float64            `json:"token_logprobs,omitempty"`
	TopLogprobs   []map[string]float64 `json:"top_logprobs,omitempty"`
	TextOffset    []int                `json:"text_offset,omitempty"`
}

// Usage holds token counts for one or more service calls.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add sums other into u component-wise.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Normalized returns u with TotalTokens equal to the sum of its components
// whenever at least one component is known.
func (u Usage) Normalized() Usage {
	if sum := u.PromptTokens + u.CompletionTokens; sum > 0 {
		u.TotalTokens = sum
	}
	return u
}
