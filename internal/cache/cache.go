// Package cache provides a completion.Provider decorator that reuses
// responses for identical prompt batches.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"k8s.io/klog/v2"

	"github.com/Yates-Labs/llmkit/internal/completion"
	"github.com/Yates-Labs/llmkit/internal/params"
)

// Store holds encoded responses by key. Get reports a miss with ok == false
// and a nil error.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Provider serves repeated requests from a Store and forwards misses.
type Provider struct {
	next  completion.Provider
	store Store
	ttl   time.Duration
}

var _ completion.Provider = (*Provider)(nil)

// New wraps next with a cache. A ttl of zero keeps entries until the store
// evicts them.
func New(next completion.Provider, store Store, ttl time.Duration) *Provider {
	return &Provider{next: next, store: store, ttl: ttl}
}

// Name reports the wrapped provider's name.
func (p *Provider) Name() string {
	if named, ok := p.next.(completion.Named); ok {
		return named.Name()
	}
	return "LLM"
}

// Complete returns a stored response when one exists for the same prompts and
// parameters. Cached responses report zero usage. Store failures never fail
// the call; the request is forwarded instead.
func (p *Provider) Complete(ctx context.Context, prompts []string, set params.Set) (*completion.RawResponse, error) {
	logger := klog.FromContext(ctx)

	key, err := Key(prompts, set)
	if err != nil {
		logger.V(2).Info("Cache key unavailable, forwarding request", "err", err)
		return p.next.Complete(ctx, prompts, set)
	}

	if resp, ok := p.lookup(ctx, key); ok {
		logger.V(4).Info("Cache hit", "key", key)
		return resp, nil
	}

	resp, err := p.next.Complete(ctx, prompts, set)
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.Incomplete() {
		return resp, nil
	}

	data, err := json.Marshal(resp)
	if err != nil {
		logger.Error(err, "Failed to encode response for cache", "key", key)
		return resp, nil
	}
	if err := p.store.Set(ctx, key, data, p.ttl); err != nil {
		logger.Error(err, "Failed to store response in cache", "key", key)
	}
	return resp, nil
}

func (p *Provider) lookup(ctx context.Context, key string) (*completion.RawResponse, bool) {
	logger := klog.FromContext(ctx)

	data, ok, err := p.store.Get(ctx, key)
	if err != nil {
		logger.Error(err, "Cache lookup failed", "key", key)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var resp completion.RawResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		logger.Error(err, "Discarding undecodable cache entry", "key", key)
		return nil, false
	}
	resp.Usage = completion.Usage{}
	resp.Cached = true
	return &resp, true
}

// Key derives the cache key for a request: the hex SHA-256 of the prompts and
// the canonical parameter map.
func Key(prompts []string, set params.Set) (string, error) {
	data, err := json.Marshal(struct {
		Prompts []string       `json:"prompts"`
		Params  map[string]any `json:"params"`
	}{prompts, set.ToMap()})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
