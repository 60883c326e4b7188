package completion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yates-Labs/llmkit/internal/params"
)

func TestUsage_Add(t *testing.T) {
	u := Usage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7}
	u.Add(Usage{PromptTokens: 5, CompletionTokens: 1})

	assert.Equal(t, Usage{PromptTokens: 8, CompletionTokens: 5, TotalTokens: 7}, u)
	assert.Equal(t, 13, u.Normalized().TotalTokens)
}

func TestUsage_NormalizedKeepsReportedTotalWithoutComponents(t *testing.T) {
	u := Usage{TotalTokens: 42}
	assert.Equal(t, 42, u.Normalized().TotalTokens)
}

func TestRawResponse_Incomplete(t *testing.T) {
	assert.False(t, (&RawResponse{Model: "m", Choices: []Choice{{Text: "a"}}}).Incomplete())
	assert.True(t, (&RawResponse{Model: "m", Missing: []string{"usage"}}).Incomplete())
	assert.True(t, (&RawResponse{Model: "m", Choices: []Choice{{Text: "a"}, {Missing: []string{"text"}}}}).Incomplete())
}

func TestMockProvider_Complete(t *testing.T) {
	fixed := &RawResponse{Model: "fixed", Choices: []Choice{{Text: "fixed text"}}}

	tests := []struct {
		name      string
		mock      *MockProvider
		prompts   []string
		n         int
		wantErr   bool
		wantTexts []string
	}{
		{
			name:      "fixed response",
			mock:      NewMockProvider(fixed),
			prompts:   []string{"Any prompt"},
			n:         1,
			wantTexts: []string{"fixed text"},
		},
		{
			name:    "error response",
			mock:    NewMockProviderWithError(errors.New("mock error")),
			prompts: []string{"Any prompt"},
			n:       1,
			wantErr: true,
		},
		{
			name:    "auto-generated response",
			mock:    &MockProvider{},
			prompts: []string{"first", "second"},
			n:       2,
			wantTexts: []string{
				"completion 0 for: first",
				"completion 1 for: first",
				"completion 0 for: second",
				"completion 1 for: second",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := params.Defaults()
			p.N = tt.n
			p.BestOf = tt.n

			resp, err := tt.mock.Complete(context.Background(), tt.prompts, p)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			texts := make([]string, 0, len(resp.Choices))
			for _, choice := range resp.Choices {
				texts = append(texts, choice.Text)
			}
			assert.Equal(t, tt.wantTexts, texts)
			assert.Equal(t, tt.prompts, tt.mock.LastPrompts())
			assert.Equal(t, 1, tt.mock.Calls())
		})
	}
}

func TestMockProvider_QueuedResponses(t *testing.T) {
	m := &MockProvider{
		Responses: []*RawResponse{{Model: "one"}, {Model: "two"}},
		Response:  &RawResponse{Model: "fallback"},
	}

	for _, want := range []string{"one", "two", "fallback", "fallback"} {
		resp, err := m.Complete(context.Background(), []string{"p"}, params.Defaults())
		require.NoError(t, err)
		assert.Equal(t, want, resp.Model)
	}
}

func TestMockProvider_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&MockProvider{}).Complete(ctx, []string{"p"}, params.Defaults())
	assert.ErrorIs(t, err, context.Canceled)
}
