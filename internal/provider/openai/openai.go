// Package openai implements completion.Provider on the OpenAI Completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	goopenai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"k8s.io/klog/v2"

	"github.com/Yates-Labs/llmkit/internal/completion"
	"github.com/Yates-Labs/llmkit/internal/params"
)

var (
	ErrMissingAPIKey = errors.New("missing OpenAI API key (set OPENAI_API_KEY or provide openai_api_key)")
	ErrRequestFailed = errors.New("openai completion request failed")
)

const defaultMaxRetries = 2

// Config holds the credentials and transport settings for the provider.
type Config struct {
	// APIKey authenticates requests. Falls back to OPENAI_API_KEY.
	APIKey string

	// Organization is sent as the OpenAI-Organization header when set.
	Organization string

	// BaseURL overrides the API endpoint (e.g., for a proxy or test server).
	BaseURL string

	// MaxRetries is handed to the SDK (0 = SDK default of 2, negative disables retries).
	MaxRetries int
}

// Provider implements completion.Provider using OpenAI's API.
type Provider struct {
	client goopenai.Client
}

var _ completion.Provider = (*Provider)(nil)

// New creates an OpenAI-backed provider.
// Returns ErrMissingAPIKey if no key is configured or set in the environment.
func New(cfg Config) (*Provider, error) {
	// Use config API key or fall back to environment variable
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	maxRetries := cfg.MaxRetries
	switch {
	case maxRetries == 0:
		maxRetries = defaultMaxRetries
	case maxRetries < 0:
		maxRetries = 0
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(maxRetries),
	}
	if cfg.Organization != "" {
		opts = append(opts, option.WithOrganization(cfg.Organization))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{client: goopenai.NewClient(opts...)}, nil
}

// Name implements completion.Named.
func (p *Provider) Name() string {
	return "OpenAI"
}

// Complete sends all prompts in one Completions request.
func (p *Provider) Complete(ctx context.Context, prompts []string, set params.Set) (*completion.RawResponse, error) {
	if len(prompts) == 0 {
		return nil, fmt.Errorf("%w: prompts cannot be empty", ErrRequestFailed)
	}

	logger := klog.FromContext(ctx)
	requestID := uuid.NewString()

	logger.V(4).Info("Sending completion request", "requestID", requestID, "model", set.Model, "prompts", len(prompts))

	resp, err := p.client.Completions.New(ctx, buildParams(prompts, set), option.WithHeader("X-Request-ID", requestID))
	if err != nil {
		var apiErr *goopenai.Error
		if errors.As(err, &apiErr) {
			logger.V(2).Info("Completion request rejected", "requestID", requestID, "status", apiErr.StatusCode)
		}
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	logger.V(4).Info("Received completion response", "requestID", requestID, "choices", len(resp.Choices))
	return toRawResponse(resp), nil
}

func buildParams(prompts []string, set params.Set) goopenai.CompletionNewParams {
	req := goopenai.CompletionNewParams{
		Model: goopenai.CompletionNewParamsModel(set.Model),
		Prompt: goopenai.CompletionNewParamsPromptUnion{
			OfArrayOfStrings: prompts,
		},
		Temperature:      goopenai.Float(set.Temperature),
		TopP:             goopenai.Float(set.TopP),
		FrequencyPenalty: goopenai.Float(set.FrequencyPenalty),
		PresencePenalty:  goopenai.Float(set.PresencePenalty),
		N:                goopenai.Int(int64(set.N)),
		BestOf:           goopenai.Int(int64(set.BestOf)),
	}

	// -1 leaves the length to the service
	if set.MaxTokens != params.ProviderDefaultMaxTokens {
		req.MaxTokens = goopenai.Int(int64(set.MaxTokens))
	}

	if len(set.LogitBias) > 0 {
		req.LogitBias = make(map[string]int64, len(set.LogitBias))
		for token, bias := range set.LogitBias {
			req.LogitBias[token] = int64(bias)
		}
	}

	return req
}

func toRawResponse(c *goopenai.Completion) *completion.RawResponse {
	resp := &completion.RawResponse{
		ID:    c.ID,
		Model: c.Model,
		Usage: completion.Usage{
			PromptTokens:     int(c.Usage.PromptTokens),
			CompletionTokens: int(c.Usage.CompletionTokens),
			TotalTokens:      int(c.Usage.TotalTokens),
		},
		Choices: make([]completion.Choice, 0, len(c.Choices)),
	}
	if !c.JSON.Usage.Valid() {
		resp.Missing = append(resp.Missing, "usage")
	}

	for _, choice := range c.Choices {
		rc := completion.Choice{
			Text:         choice.Text,
			Index:        int(choice.Index),
			FinishReason: string(choice.FinishReason),
		}

		// The SDK zero-fills absent fields; surface them instead.
		if !choice.JSON.Text.Valid() {
			rc.Missing = append(rc.Missing, "text")
		}
		if !choice.JSON.Index.Valid() {
			rc.Missing = append(rc.Missing, "index")
		}

		if lp := choice.Logprobs; len(lp.Tokens) > 0 {
			offsets := make([]int, len(lp.TextOffset))
			for i, off := range lp.TextOffset {
				offsets[i] = int(off)
			}
			rc.Logprobs = &completion.Logprobs{
				Tokens:        lp.Tokens,
				TokenLogprobs: lp.TokenLogprobs,
				TopLogprobs:   lp.TopLogprobs,
				TextOffset:    offsets,
			}
		}

		resp.Choices = append(resp.Choices, rc)
	}

	return resp
}
