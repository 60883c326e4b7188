package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"k8s.io/klog/v2"
)

const (
	DefaultKeyPrefix = "llmkit:completion:"
	redisPingTimeout = 10 * time.Second
)

// RedisStore keeps entries in Redis under a key prefix.
type RedisStore struct {
	client goredis.Cmdable
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore stores entries through client. An empty prefix uses DefaultKeyPrefix.
func NewRedisStore(client goredis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return value, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// NewRedisClient connects to the Redis server at url (redis://host:port/db)
// and verifies the connection with a PING.
func NewRedisClient(ctx context.Context, url string) (*goredis.Client, error) {
	logger := klog.FromContext(ctx)
	if url == "" {
		return nil, errors.New("redis url is empty")
	}

	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.ContextTimeoutEnabled = true

	rds := goredis.NewClient(opts)

	pctx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rds.Ping(pctx).Err(); err != nil {
		rds.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	logger.V(2).Info("Connected to redis", "addr", opts.Addr, "db", opts.DB)
	return rds, nil
}
