// Package anthropic implements completion.Provider on the Anthropic Messages
// API. The Messages API takes one prompt per request, so a batch is fanned out
// into len(prompts)*n requests and reassembled into a single response.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/Yates-Labs/llmkit/internal/completion"
	"github.com/Yates-Labs/llmkit/internal/params"
)

var (
	ErrMissingAPIKey = errors.New("missing Anthropic API key (set ANTHROPIC_API_KEY or use WithAPIKey)")
	ErrRequestFailed = errors.New("anthropic message request failed")
)

const (
	// defaultMaxTokens replaces the provider-default sentinel; the Messages API requires a limit.
	defaultMaxTokens = 1024

	defaultMaxRetries  = 3
	defaultConcurrency = 4
	maxTemperature     = 1.0
)

// Provider implements completion.Provider using the official Anthropic SDK.
type Provider struct {
	client      goanthropic.Client
	concurrency int
	maxRetries  int
}

var _ completion.Provider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*config)

type config struct {
	apiKey      string
	baseURL     string
	maxRetries  int
	concurrency int
}

// WithAPIKey sets the API key. If not provided, ANTHROPIC_API_KEY is used.
func WithAPIKey(key string) Option {
	return func(c *config) {
		c.apiKey = key
	}
}

// WithBaseURL points the client at a different endpoint.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithMaxRetries sets the maximum number of retries for transient errors.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		c.maxRetries = n
	}
}

// WithConcurrency bounds the number of in-flight requests per Complete call.
func WithConcurrency(n int) Option {
	return func(c *config) {
		c.concurrency = n
	}
}

// New creates an Anthropic-backed provider.
func New(opts ...Option) (*Provider, error) {
	cfg := config{
		maxRetries:  defaultMaxRetries,
		concurrency: defaultConcurrency,
	}
	for _, o := range opts {
		o(&cfg)
	}

	apiKey := cfg.apiKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.concurrency < 1 {
		cfg.concurrency = 1
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(cfg.maxRetries),
	}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
	}

	return &Provider{
		client:      goanthropic.NewClient(clientOpts...),
		concurrency: cfg.concurrency,
		maxRetries:  cfg.maxRetries,
	}, nil
}

// Name implements completion.Named.
func (p *Provider) Name() string {
	return "Anthropic"
}

// Concurrency returns the per-call request limit.
func (p *Provider) Concurrency() int {
	return p.concurrency
}

// MaxRetries returns the configured max retry count.
func (p *Provider) MaxRetries() int {
	return p.maxRetries
}

// Complete sends n Messages requests per prompt. The choice for prompt i,
// sample j carries index i*n+j. The first failing request cancels the rest.
func (p *Provider) Complete(ctx context.Context, prompts []string, set params.Set) (*completion.RawResponse, error) {
	if len(prompts) == 0 {
		return nil, fmt.Errorf("%w: prompts cannot be empty", ErrRequestFailed)
	}

	logger := klog.FromContext(ctx)
	if ignored := unsupported(set); len(ignored) > 0 {
		logger.V(2).Info("Ignoring parameters the Messages API does not support", "params", ignored)
	}

	n := set.N
	if n < 1 {
		n = 1
	}
	req := buildParams(set)
	messages := make([]*goanthropic.Message, len(prompts)*n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, prompt := range prompts {
		for j := 0; j < n; j++ {
			index := i*n + j
			g.Go(func() error {
				r := req
				r.Messages = []goanthropic.MessageParam{
					goanthropic.NewUserMessage(goanthropic.NewTextBlock(prompt)),
				}
				msg, err := p.client.Messages.New(gctx, r)
				if err != nil {
					return fmt.Errorf("%w: prompt %d: %w", ErrRequestFailed, i, err)
				}
				messages[index] = msg
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.V(4).Info("Received message responses", "model", set.Model, "requests", len(messages))
	return toRawResponse(messages), nil
}

func buildParams(set params.Set) goanthropic.MessageNewParams {
	maxTokens := int64(defaultMaxTokens)
	if set.MaxTokens != params.ProviderDefaultMaxTokens {
		maxTokens = int64(set.MaxTokens)
	}

	req := goanthropic.MessageNewParams{
		Model:       goanthropic.Model(set.Model),
		MaxTokens:   maxTokens,
		Temperature: goanthropic.Float(min(set.Temperature, maxTemperature)),
	}
	if set.TopP < 1 {
		req.TopP = goanthropic.Float(set.TopP)
	}
	return req
}

func unsupported(set params.Set) []string {
	var ignored []string
	if set.FrequencyPenalty != 0 {
		ignored = append(ignored, params.KeyFrequencyPenalty)
	}
	if set.PresencePenalty != 0 {
		ignored = append(ignored, params.KeyPresencePenalty)
	}
	if set.BestOf > set.N {
		ignored = append(ignored, params.KeyBestOf)
	}
	if len(set.LogitBias) > 0 {
		ignored = append(ignored, params.KeyLogitBias)
	}
	return ignored
}

func toRawResponse(messages []*goanthropic.Message) *completion.RawResponse {
	resp := &completion.RawResponse{
		Choices: make([]completion.Choice, 0, len(messages)),
	}

	for index, msg := range messages {
		if resp.ID == "" {
			resp.ID = msg.ID
			resp.Model = string(msg.Model)
		}

		var text strings.Builder
		for _, block := range msg.Content {
			if variant, ok := block.AsAny().(goanthropic.TextBlock); ok {
				text.WriteString(variant.Text)
			}
		}

		resp.Choices = append(resp.Choices, completion.Choice{
			Text:         text.String(),
			Index:        index,
			FinishReason: finishReason(string(msg.StopReason)),
		})
		resp.Usage.Add(completion.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
		})
	}

	resp.Usage = resp.Usage.Normalized()
	return resp
}

// finishReason maps stop_reason onto the Completions API vocabulary.
func finishReason(stop string) string {
	switch stop {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	default:
		return stop
	}
}
