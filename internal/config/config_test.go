package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, CacheNone, cfg.Cache.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 4, cfg.Anthropic.Concurrency)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	path := writeFile(t, `
provider: anthropic
params_file: params.toml
params:
  temperature: 0.2
  logit_bias:
    "50256": -100
request_timeout: 15s
anthropic:
  concurrency: 8
cache:
  backend: redis
  redis_url: redis://localhost:6379/0
  ttl: 1h
`)

	cfg := NewConfig()
	require.NoError(t, cfg.LoadFromYAML(path))

	assert.Equal(t, ProviderAnthropic, cfg.Provider)
	assert.Equal(t, "params.toml", cfg.ParamsFile)
	assert.Equal(t, 0.2, cfg.Params["temperature"])
	assert.Equal(t, map[string]any{"50256": -100}, cfg.Params["logit_bias"])
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 8, cfg.Anthropic.Concurrency)
	assert.Equal(t, 3, cfg.Anthropic.MaxRetries, "defaults survive a partial document")
	assert.Equal(t, CacheRedis, cfg.Cache.Backend)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "llmkit:completion:", cfg.Cache.KeyPrefix)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML_Errors(t *testing.T) {
	cfg := NewConfig()
	assert.Error(t, cfg.LoadFromYAML(filepath.Join(t.TempDir(), "missing.yaml")))

	err := cfg.LoadFromYAML(writeFile(t, "provdier: openai\n"))
	assert.ErrorIs(t, err, ErrInvalid)

	err = cfg.LoadFromYAML(writeFile(t, "request_timeout: soon\n"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestApplyEnv(t *testing.T) {
	cfg := NewConfig()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"LLMKIT_PROVIDER":       "mock",
		"OPENAI_API_KEY":        "sk-test",
		"ANTHROPIC_API_KEY":     "",
		"LLMKIT_CACHE":          "memory",
		"LLMKIT_CACHE_TTL":      "90s",
		"LLMKIT_LENIENT_PARAMS": "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, ProviderMock, cfg.Provider)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Empty(t, cfg.Anthropic.APIKey)
	assert.Equal(t, CacheMemory, cfg.Cache.Backend)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.True(t, cfg.LenientParams)
}

func TestApplyEnv_Errors(t *testing.T) {
	for _, name := range []string{"LLMKIT_CACHE_TTL", "LLMKIT_REQUEST_TIMEOUT", "LLMKIT_LENIENT_PARAMS"} {
		t.Run(name, func(t *testing.T) {
			err := NewConfig().ApplyEnv(envMap(map[string]string{name: "not-valid"}))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*AppConfig)
	}{
		{"unknown provider", func(c *AppConfig) { c.Provider = "cohere" }},
		{"unknown cache", func(c *AppConfig) { c.Cache.Backend = "memcached" }},
		{"redis without url", func(c *AppConfig) { c.Cache.Backend = CacheRedis }},
		{"negative ttl", func(c *AppConfig) { c.Cache.TTL = -time.Second }},
		{"negative timeout", func(c *AppConfig) { c.RequestTimeout = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.modify(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}
