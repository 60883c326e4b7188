package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yates-Labs/llmkit/internal/config"
	"github.com/Yates-Labs/llmkit/internal/llm"
	"github.com/Yates-Labs/llmkit/internal/params"
)

func mockConfig() *config.AppConfig {
	cfg := config.NewConfig()
	cfg.Provider = config.ProviderMock
	return cfg
}

func TestNewPipeline_Mock(t *testing.T) {
	p, err := NewPipeline(context.Background(), mockConfig())
	require.NoError(t, err)
	defer p.Close()

	text, err := p.Call(context.Background(), "colorful socks")
	require.NoError(t, err)
	assert.Equal(t, "completion 0 for: colorful socks", text)
	assert.Equal(t, "Mock", p.Wrapper().Name())
}

func TestNewPipeline_InvalidConfig(t *testing.T) {
	cfg := mockConfig()
	cfg.Provider = "cohere"

	_, err := NewPipeline(context.Background(), cfg)
	assert.ErrorIs(t, err, config.ErrInvalid)

	cfg = mockConfig()
	cfg.Params = map[string]any{"n": 3, "best_of": 1}
	_, err = NewPipeline(context.Background(), cfg)
	assert.ErrorIs(t, err, llm.ErrConfig)
}

func TestNewPipeline_LenientParams(t *testing.T) {
	cfg := mockConfig()
	cfg.Params = map[string]any{"stream": true}

	_, err := NewPipeline(context.Background(), cfg)
	assert.ErrorIs(t, err, llm.ErrConfig)

	cfg.LenientParams = true
	_, err = NewPipeline(context.Background(), cfg)
	assert.NoError(t, err)
}

func TestNewPipeline_ParamsFileWithOverrides(t *testing.T) {
	set := params.Defaults()
	set.Model = "text-curie-001"
	set.Temperature = 0.1
	set.MaxTokens = 32
	path := filepath.Join(t.TempDir(), "params.toml")
	require.NoError(t, set.Save(path))

	cfg := mockConfig()
	cfg.ParamsFile = path
	cfg.Params = map[string]any{"model": "text-davinci-003", "temperature": 0.9}

	p, err := NewPipeline(context.Background(), cfg)
	require.NoError(t, err)

	got := p.Wrapper().Params()
	assert.Equal(t, "text-davinci-003", got.Model)
	assert.Equal(t, 0.9, got.Temperature)
	assert.Equal(t, 32, got.MaxTokens)
}

func TestNewPipeline_MissingParamsFile(t *testing.T) {
	cfg := mockConfig()
	cfg.ParamsFile = filepath.Join(t.TempDir(), "nope.json")

	_, err := NewPipeline(context.Background(), cfg)
	assert.ErrorIs(t, err, params.ErrIO)
}

func TestNewPipeline_MemoryCache(t *testing.T) {
	cfg := mockConfig()
	cfg.Cache.Backend = config.CacheMemory

	p, err := NewPipeline(context.Background(), cfg)
	require.NoError(t, err)

	first, err := p.Generate(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	second, err := p.Generate(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, first.Texts(), second.Texts())
	assert.Positive(t, first.TokenUsage().TotalTokens)
	assert.Zero(t, second.TokenUsage().TotalTokens)
}

func TestNewPipeline_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := mockConfig()
	cfg.Cache.Backend = config.CacheRedis
	cfg.Cache.RedisURL = "redis://" + mr.Addr()
	cfg.Cache.TTL = time.Minute

	p, err := NewPipeline(context.Background(), cfg)
	require.NoError(t, err)

	_, err = p.Call(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, mr.Keys(), 1)

	require.NoError(t, p.Close())
}

func TestNewPipeline_RedisUnavailable(t *testing.T) {
	cfg := mockConfig()
	cfg.Cache.Backend = config.CacheRedis
	cfg.Cache.RedisURL = "redis://bad url"

	_, err := NewPipeline(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewPipeline_OpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "text-davinci-003",
			"choices": []map[string]any{
				{"text": "Kaleidosocks", "index": 0, "finish_reason": "stop"},
			},
			"usage": map[string]any{"prompt_tokens": 15, "completion_tokens": 7, "total_tokens": 22},
		})
	}))
	defer srv.Close()

	cfg := config.NewConfig()
	cfg.OpenAI.APIKey = "test"
	cfg.OpenAI.BaseURL = srv.URL + "/v1"
	cfg.OpenAI.MaxRetries = -1

	p, err := NewPipeline(context.Background(), cfg)
	require.NoError(t, err)

	text, err := p.Call(context.Background(), "What would be a good company name for a company that makes colorful socks?")
	require.NoError(t, err)
	assert.Equal(t, "Kaleidosocks", text)
	assert.Equal(t, "OpenAI", p.Wrapper().Name())
}

func TestNewPipeline_ProviderWithoutKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	for _, provider := range []string{config.ProviderOpenAI, config.ProviderAnthropic} {
		cfg := config.NewConfig()
		cfg.Provider = provider
		_, err := NewPipeline(context.Background(), cfg)
		assert.Error(t, err, provider)
	}
}

type countingRecorder struct{ calls int }

func (r *countingRecorder) ObserveGenerate(string, time.Duration, llm.TokenUsage, int) { r.calls++ }

func TestNewPipeline_ExtraOptions(t *testing.T) {
	rec := &countingRecorder{}
	p, err := NewPipeline(context.Background(), mockConfig(), llm.WithRecorder(rec), llm.WithName("Demo"))
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, "Demo", p.Wrapper().Name())
}

func TestPipeline_RequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cfg := config.NewConfig()
	cfg.OpenAI.APIKey = "test"
	cfg.OpenAI.BaseURL = srv.URL + "/v1"
	cfg.OpenAI.MaxRetries = -1
	cfg.RequestTimeout = 50 * time.Millisecond

	p, err := NewPipeline(context.Background(), cfg)
	require.NoError(t, err)

	_, err = p.Call(context.Background(), "late")
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestParameterConfig_NoFile(t *testing.T) {
	cfg := mockConfig()
	cfg.Params = map[string]any{"n": 2}

	got, err := parameterConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": 2}, got)
}
