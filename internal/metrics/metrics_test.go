package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yates-Labs/llmkit/internal/completion"
	"github.com/Yates-Labs/llmkit/internal/llm"
)

func TestRecorder_ObserveGenerate(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.ObserveGenerate("", 120*time.Millisecond, llm.TokenUsage{PromptTokens: 8, CompletionTokens: 48, TotalTokens: 56}, 2)
	r.ObserveGenerate(llm.ReasonProvider, time.Second, llm.TokenUsage{}, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.requests.WithLabelValues(ResultSuccess, ReasonNone)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.requests.WithLabelValues(ResultFailed, llm.ReasonProvider)))
	assert.Equal(t, 8.0, testutil.ToFloat64(r.tokens.WithLabelValues(TokensPrompt)))
	assert.Equal(t, 48.0, testutil.ToFloat64(r.tokens.WithLabelValues(TokensCompletion)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.generations))
	assert.Equal(t, 2, testutil.CollectAndCount(r.duration))
}

func TestRecorder_RegisterTwicePanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRecorder(reg)
	assert.Panics(t, func() { NewRecorder(reg) })
}

func TestRecorder_WithWrapper(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	w, err := llm.New(nil, llm.WithProvider(&completion.MockProvider{}), llm.WithRecorder(r))
	require.NoError(t, err)

	_, err = w.Generate(context.Background(), []string{"one", "two"})
	require.NoError(t, err)

	_, err = w.Generate(context.Background(), nil)
	require.True(t, errors.Is(err, llm.ErrValidation))

	expected := `
# HELP llmkit_generate_requests_total Total number of Generate calls
# TYPE llmkit_generate_requests_total counter
llmkit_generate_requests_total{reason="none",result="success"} 1
llmkit_generate_requests_total{reason="validation",result="failed"} 1
# HELP llmkit_generations_total Total number of generations returned
# TYPE llmkit_generations_total counter
llmkit_generations_total 2
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"llmkit_generate_requests_total", "llmkit_generations_total")
	assert.NoError(t, err)
}
