package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yates-Labs/llmkit/internal/completion"
)

func TestResult_GenerationsAreCopies(t *testing.T) {
	r := &Result{
		generations: [][]Generation{{{Text: "a", Info: map[string]any{"finish_reason": "stop"}}}},
		modelName:   "m",
	}

	gens := r.Generations()
	gens[0][0].Text = "changed"
	gens[0][0].Info["finish_reason"] = "length"

	assert.Equal(t, "a", r.FirstGenerationText())
	g, _ := r.FirstGeneration()
	assert.Equal(t, "stop", g.Info["finish_reason"])
}

func TestResult_EmptyFirstGeneration(t *testing.T) {
	r := &Result{generations: [][]Generation{{}}}

	_, ok := r.FirstGeneration()
	assert.False(t, ok)
	assert.Empty(t, r.FirstGenerationText())
}

func TestResult_MarshalJSON(t *testing.T) {
	r := &Result{
		generations: [][]Generation{{{Text: "joke", Info: map[string]any{"finish_reason": "stop"}}}, {{Text: "poem"}}},
		usage:       TokenUsage{PromptTokens: 8, CompletionTokens: 48, TotalTokens: 56},
		modelName:   "text-davinci-003",
	}

	data, err := json.Marshal(r)
	require.NoError(t, err)

	want := `{"generations":[[{"text":"joke","generation_info":{"finish_reason":"stop"}}],[{"text":"poem"}]],` +
		`"llm_output":{"model_name":"text-davinci-003","token_usage":{"completion_tokens":48,"prompt_tokens":8,"total_tokens":56}}}`
	assert.Equal(t, want, string(data))
}

func TestNewGeneration_Info(t *testing.T) {
	tests := []struct {
		name   string
		choice completion.Choice
		keys   []string
	}{
		{name: "no metadata", choice: completion.Choice{Text: "x"}},
		{name: "finish reason", choice: completion.Choice{Text: "x", FinishReason: "length"}, keys: []string{"finish_reason"}},
		{
			name:   "logprobs",
			choice: completion.Choice{Text: "x", FinishReason: "stop", Logprobs: &completion.Logprobs{Tokens: []string{"x"}}},
			keys:   []string{"finish_reason", "logprobs"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGeneration(&tt.choice)
			if len(tt.keys) == 0 {
				assert.Nil(t, g.Info)
				return
			}
			assert.Len(t, g.Info, len(tt.keys))
			for _, k := range tt.keys {
				assert.Contains(t, g.Info, k)
			}
		})
	}
}
