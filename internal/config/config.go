// The application's configuration definitions.

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

var ErrInvalid = errors.New("invalid application config")

type OpenAIConfig struct {
	APIKey       string `json:"api_key" yaml:"api_key"`
	Organization string `json:"organization" yaml:"organization"`
	BaseURL      string `json:"base_url" yaml:"base_url"`
	MaxRetries   int    `json:"max_retries" yaml:"max_retries"` // 0 uses the SDK default; negative disables retries.
}

type AnthropicConfig struct {
	APIKey      string `json:"api_key" yaml:"api_key"`
	BaseURL     string `json:"base_url" yaml:"base_url"`
	MaxRetries  int    `json:"max_retries" yaml:"max_retries"`
	Concurrency int    `json:"concurrency" yaml:"concurrency"` // Requests in flight per Generate call.
}

type CacheConfig struct {
	Backend   string        `json:"backend" yaml:"backend"`
	RedisURL  string        `json:"redis_url" yaml:"redis_url"`
	KeyPrefix string        `json:"key_prefix" yaml:"key_prefix"`
	TTL       time.Duration `json:"ttl" yaml:"ttl"` // 0 keeps entries until evicted.
}

type AppConfig struct {
	Provider string `json:"provider" yaml:"provider"`

	// ParamsFile names a parameter document (JSON, YAML or TOML) applied before Params.
	ParamsFile string         `json:"params_file" yaml:"params_file"`
	Params     map[string]any `json:"params" yaml:"params"`

	// LenientParams drops unknown parameter keys instead of rejecting them.
	LenientParams bool `json:"lenient_params" yaml:"lenient_params"`

	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`

	OpenAI    OpenAIConfig    `json:"openai" yaml:"openai"`
	Anthropic AnthropicConfig `json:"anthropic" yaml:"anthropic"`
	Cache     CacheConfig     `json:"cache" yaml:"cache"`
}

// LoadFromYAML loads the configuration from a YAML file over the current values.
func (c *AppConfig) LoadFromYAML(filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalid, filePath, err)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables. lookup is usually
// os.LookupEnv.
func (c *AppConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := []struct {
		name   string
		target *string
	}{
		{"LLMKIT_PROVIDER", &c.Provider},
		{"LLMKIT_PARAMS_FILE", &c.ParamsFile},
		{"OPENAI_API_KEY", &c.OpenAI.APIKey},
		{"OPENAI_ORGANIZATION", &c.OpenAI.Organization},
		{"OPENAI_BASE_URL", &c.OpenAI.BaseURL},
		{"ANTHROPIC_API_KEY", &c.Anthropic.APIKey},
		{"ANTHROPIC_BASE_URL", &c.Anthropic.BaseURL},
		{"LLMKIT_CACHE", &c.Cache.Backend},
		{"LLMKIT_REDIS_URL", &c.Cache.RedisURL},
	}
	for _, s := range strs {
		if v, ok := lookup(s.name); ok && v != "" {
			*s.target = v
		}
	}

	if v, ok := lookup("LLMKIT_CACHE_TTL"); ok && v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: LLMKIT_CACHE_TTL: %w", ErrInvalid, err)
		}
		c.Cache.TTL = ttl
	}
	if v, ok := lookup("LLMKIT_REQUEST_TIMEOUT"); ok && v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: LLMKIT_REQUEST_TIMEOUT: %w", ErrInvalid, err)
		}
		c.RequestTimeout = timeout
	}
	if v, ok := lookup("LLMKIT_LENIENT_PARAMS"); ok && v != "" {
		lenient, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: LLMKIT_LENIENT_PARAMS: %w", ErrInvalid, err)
		}
		c.LenientParams = lenient
	}
	return nil
}

// Validate checks the provider and cache selections.
func (c *AppConfig) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderMock:
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalid, c.Provider)
	}

	switch c.Cache.Backend {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("%w: cache backend %q needs redis_url", ErrInvalid, CacheRedis)
		}
	default:
		return fmt.Errorf("%w: unknown cache backend %q", ErrInvalid, c.Cache.Backend)
	}

	if c.Cache.TTL < 0 {
		return fmt.Errorf("%w: negative cache ttl", ErrInvalid)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("%w: negative request timeout", ErrInvalid)
	}
	return nil
}

// NewConfig returns a new AppConfig with default values.
func NewConfig() *AppConfig {
	return &AppConfig{
		Provider:       ProviderOpenAI,
		Params:         map[string]any{},
		RequestTimeout: 60 * time.Second,
		Anthropic: AnthropicConfig{
			MaxRetries:  3,
			Concurrency: 4,
		},
		Cache: CacheConfig{
			Backend:   CacheNone,
			KeyPrefix: "llmkit:completion:",
			TTL:       24 * time.Hour,
		},
	}
}
