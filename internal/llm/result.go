package llm

import (
	"encoding/json"
	"maps"

	"github.com/Yates-Labs/llmkit/internal/completion"
)

// TokenUsage counts prompt and completion tokens across a Generate call.
type TokenUsage = completion.Usage

// Generation is one completion produced for a prompt.
type Generation struct {
	Text string `json:"text"`

	// Info carries per-choice metadata such as finish_reason and logprobs.
	// It is nil when the provider reported none.
	Info map[string]any `json:"generation_info,omitempty"`
}

// Result is the outcome of a Generate call. It holds one list of generations
// per prompt, in prompt order. A Result is read-only; accessors return copies.
type Result struct {
	generations [][]Generation
	usage       TokenUsage
	modelName   string
}

// Generations returns the per-prompt generation lists.
func (r *Result) Generations() [][]Generation {
	out := make([][]Generation, len(r.generations))
	for i, group := range r.generations {
		out[i] = make([]Generation, len(group))
		for j, g := range group {
			out[i][j] = Generation{Text: g.Text, Info: maps.Clone(g.Info)}
		}
	}
	return out
}

// FirstGeneration returns the first generation of the first prompt.
func (r *Result) FirstGeneration() (Generation, bool) {
	if len(r.generations) == 0 || len(r.generations[0]) == 0 {
		return Generation{}, false
	}
	g := r.generations[0][0]
	return Generation{Text: g.Text, Info: maps.Clone(g.Info)}, true
}

// FirstGenerationText returns the text of the first generation, or "".
func (r *Result) FirstGenerationText() string {
	g, _ := r.FirstGeneration()
	return g.Text
}

// Flatten returns every generation in prompt order.
func (r *Result) Flatten() []Generation {
	var out []Generation
	for _, group := range r.Generations() {
		out = append(out, group...)
	}
	return out
}

// Texts returns the text of every generation in prompt order.
func (r *Result) Texts() []string {
	var out []string
	for _, group := range r.generations {
		for _, g := range group {
			out = append(out, g.Text)
		}
	}
	return out
}

// TokenUsage returns the merged token usage.
func (r *Result) TokenUsage() TokenUsage {
	return r.usage
}

// ModelName returns the configured model the result was generated with.
func (r *Result) ModelName() string {
	return r.modelName
}

// LLMOutput returns the raw output map:
//
//	{"token_usage": {"prompt_tokens", "completion_tokens", "total_tokens"}, "model_name"}
func (r *Result) LLMOutput() map[string]any {
	return map[string]any{
		"token_usage": map[string]int{
			"prompt_tokens":     r.usage.PromptTokens,
			"completion_tokens": r.usage.CompletionTokens,
			"total_tokens":      r.usage.TotalTokens,
		},
		"model_name": r.modelName,
	}
}

// MarshalJSON encodes the generations alongside the raw output map.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Generations [][]Generation `json:"generations"`
		LLMOutput   map[string]any `json:"llm_output"`
	}{
		Generations: r.generations,
		LLMOutput:   r.LLMOutput(),
	})
}

func newGeneration(c *completion.Choice) Generation {
	g := Generation{Text: c.Text}
	if c.FinishReason == "" && c.Logprobs == nil {
		return g
	}

	g.Info = map[string]any{}
	if c.FinishReason != "" {
		g.Info["finish_reason"] = c.FinishReason
	}
	if c.Logprobs != nil {
		g.Info["logprobs"] = c.Logprobs
	}
	return g
}
