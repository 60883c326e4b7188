// Package llm wraps a completion provider behind a uniform call/generate
// interface. The wrapper owns a validated parameter set, shapes requests,
// validates provider responses and assembles them into Results.
package llm

import (
	"context"
	"fmt"
	"time"

	"k8s.io/klog/v2"

	"github.com/Yates-Labs/llmkit/internal/completion"
	"github.com/Yates-Labs/llmkit/internal/params"
	"github.com/Yates-Labs/llmkit/internal/provider/openai"
)

// Credential keys accepted in the configuration map next to the parameters.
const (
	KeyOpenAIAPIKey       = "openai_api_key"
	KeyOpenAIOrganization = "openai_organization"
	KeyOpenAIBaseURL      = "openai_base_url"
)

// Failure reasons passed to a Recorder.
const (
	ReasonValidation     = "validation"
	ReasonProvider       = "provider"
	ReasonResponseFormat = "response_format"
	ReasonEmptyResponse  = "empty_response"
	ReasonCancelled      = "cancelled"
)

// Recorder observes every Generate call. reason is empty on success.
type Recorder interface {
	ObserveGenerate(reason string, elapsed time.Duration, usage TokenUsage, generations int)
}

// Wrapper turns prompts into completions through a Provider.
// It holds no mutable state and is safe for concurrent use.
type Wrapper struct {
	name      string
	params    params.Set
	provider  completion.Provider
	recorder  Recorder
	paramOpts []params.Option
}

// Option configures a Wrapper.
type Option func(*Wrapper)

// WithProvider sets the completion provider. Without it New builds the
// OpenAI provider from the configuration's credentials.
func WithProvider(p completion.Provider) Option {
	return func(w *Wrapper) { w.provider = p }
}

// WithRecorder reports every Generate call to r.
func WithRecorder(r Recorder) Option {
	return func(w *Wrapper) { w.recorder = r }
}

// WithName overrides the type identity used by DisplayString.
func WithName(name string) Option {
	return func(w *Wrapper) { w.name = name }
}

// WithLenientConfig drops unknown configuration keys instead of failing.
func WithLenientConfig() Option {
	return func(w *Wrapper) { w.paramOpts = append(w.paramOpts, params.Lenient()) }
}

// WithLogger sets the logger used while parsing the configuration. Calls log
// through the logger in their context.
func WithLogger(logger klog.Logger) Option {
	return func(w *Wrapper) { w.paramOpts = append(w.paramOpts, params.WithLogger(logger)) }
}

// New creates a Wrapper from a configuration map holding parameters and,
// optionally, OpenAI credentials.
func New(cfg map[string]any, opts ...Option) (*Wrapper, error) {
	w := &Wrapper{}
	for _, opt := range opts {
		opt(w)
	}

	paramCfg := make(map[string]any, len(cfg))
	creds := openai.Config{}
	for key, value := range cfg {
		var target *string
		switch key {
		case KeyOpenAIAPIKey:
			target = &creds.APIKey
		case KeyOpenAIOrganization:
			target = &creds.Organization
		case KeyOpenAIBaseURL:
			target = &creds.BaseURL
		default:
			paramCfg[key] = value
			continue
		}
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a string, got %T", ErrConfig, key, value)
		}
		*target = s
	}

	p, err := params.FromConfig(paramCfg, w.paramOpts...)
	if err != nil {
		return nil, err
	}
	w.params = p

	if w.provider == nil {
		provider, err := openai.New(creds)
		if err != nil {
			return nil, fmt.Errorf("%w: no provider given and %w", ErrConfig, err)
		}
		w.provider = provider
	}

	return w, nil
}

// Params returns a copy of the wrapper's parameter set.
func (w *Wrapper) Params() params.Set {
	return w.params.Clone()
}

// WithParams returns a new Wrapper with cfg merged into the current
// parameters. w itself is not modified.
func (w *Wrapper) WithParams(cfg map[string]any) (*Wrapper, error) {
	merged, err := w.params.Merge(cfg, w.paramOpts...)
	if err != nil {
		return nil, err
	}

	next := *w
	next.params = merged
	return &next, nil
}

// Name returns the wrapper's type identity.
func (w *Wrapper) Name() string {
	if w.name != "" {
		return w.name
	}
	if named, ok := w.provider.(completion.Named); ok {
		return named.Name()
	}
	return "LLM"
}

// DisplayString renders the type identity and parameters for logs.
func (w *Wrapper) DisplayString() string {
	return w.params.DisplayString(w.Name())
}

// Call completes a single prompt and returns the text of its first generation.
func (w *Wrapper) Call(ctx context.Context, prompt string) (string, error) {
	result, err := w.Generate(ctx, []string{prompt})
	if err != nil {
		return "", err
	}

	g, ok := result.FirstGeneration()
	if !ok {
		return "", fmt.Errorf("%w: no generation for prompt 0", ErrEmptyResponse)
	}
	return g.Text, nil
}

// Generate completes every prompt in a single provider call. It either
// returns a Result with one generation list per prompt, in prompt order,
// or an error; partial results are never returned.
func (w *Wrapper) Generate(ctx context.Context, prompts []string) (*Result, error) {
	start := time.Now()
	result, reason, err := w.generate(ctx, prompts)

	if w.recorder != nil {
		var usage TokenUsage
		generations := 0
		if result != nil {
			usage = result.usage
			generations = len(result.Texts())
		}
		w.recorder.ObserveGenerate(reason, time.Since(start), usage, generations)
	}
	return result, err
}

func (w *Wrapper) generate(ctx context.Context, prompts []string) (*Result, string, error) {
	if len(prompts) == 0 {
		return nil, ReasonValidation, fmt.Errorf("%w: at least one prompt is required", ErrValidation)
	}

	logger := klog.FromContext(ctx)
	p := w.params.Clone()

	logger.V(4).Info("Requesting completions", "provider", w.Name(), "model", p.Model, "prompts", len(prompts), "n", p.N)

	resp, err := w.provider.Complete(ctx, prompts, p)
	if ctxErr := ctx.Err(); ctxErr != nil {
		// Whatever the provider returned, the caller has gone away.
		return nil, ReasonCancelled, fmt.Errorf("generate cancelled: %w", ctxErr)
	}
	if err != nil {
		return nil, ReasonProvider, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	if resp == nil {
		return nil, ReasonResponseFormat, &ResponseError{Prompt: -1, Choice: -1, Reason: "provider returned no response"}
	}

	generations, err := groupChoices(resp, len(prompts), p.N)
	if err != nil {
		reason := ReasonResponseFormat
		if len(resp.Choices) == 0 {
			reason = ReasonEmptyResponse
		}
		return nil, reason, err
	}

	usage := resp.Usage.Normalized()
	if resp.Usage.TotalTokens != 0 && resp.Usage.TotalTokens != usage.TotalTokens {
		logger.V(2).Info("Provider total tokens disagree with components, using the sum",
			"reported", resp.Usage.TotalTokens, "prompt", usage.PromptTokens, "completion", usage.CompletionTokens)
	}

	logger.V(4).Info("Received completions", "provider", w.Name(), "choices", len(resp.Choices),
		"totalTokens", usage.TotalTokens, "cached", resp.Cached)

	return &Result{
		generations: generations,
		usage:       usage,
		modelName:   p.Model,
	}, "", nil
}
