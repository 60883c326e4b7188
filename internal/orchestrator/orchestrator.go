// Package orchestrator assembles a ready-to-use LLM wrapper from the
// application config: parameter document, provider, cache and metrics.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"

	"k8s.io/klog/v2"

	"github.com/Yates-Labs/llmkit/internal/cache"
	"github.com/Yates-Labs/llmkit/internal/completion"
	"github.com/Yates-Labs/llmkit/internal/config"
	"github.com/Yates-Labs/llmkit/internal/llm"
	"github.com/Yates-Labs/llmkit/internal/params"
	"github.com/Yates-Labs/llmkit/internal/provider/anthropic"
	"github.com/Yates-Labs/llmkit/internal/provider/openai"
)

// Pipeline owns a wrapper and the connections behind it.
type Pipeline struct {
	config  *config.AppConfig
	wrapper *llm.Wrapper
	closers []io.Closer
}

// NewPipeline builds the provider chain described by cfg. Extra options are
// passed to llm.New after the pipeline's own (e.g. llm.WithRecorder).
func NewPipeline(ctx context.Context, cfg *config.AppConfig, opts ...llm.Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := klog.FromContext(ctx)

	paramCfg, err := parameterConfig(cfg)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{config: cfg}

	provider, err := newProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", cfg.Provider, err)
	}

	provider, err = p.withCache(ctx, provider)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	wrapperOpts := []llm.Option{llm.WithProvider(provider), llm.WithLogger(logger)}
	if cfg.LenientParams {
		wrapperOpts = append(wrapperOpts, llm.WithLenientConfig())
	}
	wrapperOpts = append(wrapperOpts, opts...)

	wrapper, err := llm.New(paramCfg, wrapperOpts...)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.wrapper = wrapper

	logger.V(2).Info("Pipeline ready", "provider", cfg.Provider, "cache", cfg.Cache.Backend, "model", wrapper.Params().Model)
	return p, nil
}

// ResolveParams returns the parameter set cfg describes without building a provider.
func ResolveParams(ctx context.Context, cfg *config.AppConfig) (params.Set, error) {
	paramCfg, err := parameterConfig(cfg)
	if err != nil {
		return params.Set{}, err
	}
	opts := []params.Option{params.WithLogger(klog.FromContext(ctx))}
	if cfg.LenientParams {
		opts = append(opts, params.Lenient())
	}
	return params.FromConfig(paramCfg, opts...)
}

// ProviderName is the display name for a configured provider.
func ProviderName(provider string) string {
	switch provider {
	case config.ProviderOpenAI:
		return "OpenAI"
	case config.ProviderAnthropic:
		return "Anthropic"
	case config.ProviderMock:
		return "Mock"
	default:
		return "LLM"
	}
}

// parameterConfig layers the inline params over the params document.
func parameterConfig(cfg *config.AppConfig) (map[string]any, error) {
	merged := map[string]any{}
	if cfg.ParamsFile != "" {
		doc, err := params.Load(cfg.ParamsFile)
		if err != nil {
			return nil, err
		}
		merged = doc
	}

	// A document carries both model keys; an override of either replaces both.
	_, hasModel := cfg.Params[params.KeyModel]
	_, hasModelName := cfg.Params[params.KeyModelName]
	if hasModel || hasModelName {
		delete(merged, params.KeyModel)
		delete(merged, params.KeyModelName)
	}
	maps.Copy(merged, cfg.Params)
	return merged, nil
}

func newProvider(cfg *config.AppConfig) (completion.Provider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.New(openai.Config{
			APIKey:       cfg.OpenAI.APIKey,
			Organization: cfg.OpenAI.Organization,
			BaseURL:      cfg.OpenAI.BaseURL,
			MaxRetries:   cfg.OpenAI.MaxRetries,
		})
	case config.ProviderAnthropic:
		opts := []anthropic.Option{
			anthropic.WithMaxRetries(cfg.Anthropic.MaxRetries),
			anthropic.WithConcurrency(cfg.Anthropic.Concurrency),
		}
		if cfg.Anthropic.APIKey != "" {
			opts = append(opts, anthropic.WithAPIKey(cfg.Anthropic.APIKey))
		}
		if cfg.Anthropic.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.Anthropic.BaseURL))
		}
		return anthropic.New(opts...)
	case config.ProviderMock:
		return &completion.MockProvider{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", config.ErrInvalid, cfg.Provider)
	}
}

func (p *Pipeline) withCache(ctx context.Context, provider completion.Provider) (completion.Provider, error) {
	cc := p.config.Cache
	switch cc.Backend {
	case config.CacheMemory:
		return cache.New(provider, cache.NewMemoryStore(), cc.TTL), nil
	case config.CacheRedis:
		client, err := cache.NewRedisClient(ctx, cc.RedisURL)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, client)
		return cache.New(provider, cache.NewRedisStore(client, cc.KeyPrefix), cc.TTL), nil
	default:
		return provider, nil
	}
}

// Wrapper returns the assembled wrapper.
func (p *Pipeline) Wrapper() *llm.Wrapper {
	return p.wrapper
}

// Call runs a single prompt under the configured request timeout.
func (p *Pipeline) Call(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	return p.wrapper.Call(ctx, prompt)
}

// Generate runs a prompt batch under the configured request timeout.
func (p *Pipeline) Generate(ctx context.Context, prompts []string) (*llm.Result, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	return p.wrapper.Generate(ctx, prompts)
}

func (p *Pipeline) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.config.RequestTimeout > 0 {
		return context.WithTimeout(ctx, p.config.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

// Close releases connections held by the pipeline.
func (p *Pipeline) Close() error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c.Close())
	}
	p.closers = nil
	return errors.Join(errs...)
}
