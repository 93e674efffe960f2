package cachestore

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/redis"
)

// scanBatch is the COUNT hint used when Clear sweeps the key space.
const scanBatch = 200

// Redis adapts a go-zero Redis client to the Store contract, so a shared
// cache service can back the day buckets. Entries can carry an optional TTL;
// expiry is then the cache service's business, not this module's.
type Redis struct {
	client *redis.Redis
	prefix string
	ttl    time.Duration
}

// RedisOption configures the Redis store.
type RedisOption func(*Redis)

// WithTTL sets a per-entry expiry. Zero keeps entries until the cache
// service evicts them.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// NewRedis builds a store from go-zero Redis configuration. The prefix
// scopes Clear to this module's keys; pass the key namespace used by the
// caller.
func NewRedis(conf redis.RedisConf, prefix string, opts ...RedisOption) (*Redis, error) {
	client, err := redis.NewRedis(conf)
	if err != nil {
		return nil, fmt.Errorf("cachestore: connect redis: %w", err)
	}
	r := &Redis{client: client, prefix: prefix}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Get reads a key. go-zero reports a missing key as an empty value, which is
// unambiguous here because bucket payloads are never empty.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.GetCtx(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("cachestore: redis get: %w", err)
	}
	if value == "" {
		return nil, false, nil
	}
	return []byte(value), true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if r.ttl > 0 {
		if err := r.client.SetexCtx(ctx, key, string(value), int(r.ttl/time.Second)); err != nil {
			return fmt.Errorf("cachestore: redis setex: %w", err)
		}
		return nil
	}
	if err := r.client.SetCtx(ctx, key, string(value)); err != nil {
		return fmt.Errorf("cachestore: redis set: %w", err)
	}
	return nil
}

// Clear deletes every key under the configured prefix.
func (r *Redis) Clear(ctx context.Context) error {
	match := "*"
	if r.prefix != "" {
		match = r.prefix + ":*"
	}
	cursor := uint64(0)
	for {
		keys, next, err := r.client.ScanCtx(ctx, cursor, match, scanBatch)
		if err != nil {
			return fmt.Errorf("cachestore: redis scan: %w", err)
		}
		if len(keys) > 0 {
			if _, err := r.client.DelCtx(ctx, keys...); err != nil {
				return fmt.Errorf("cachestore: redis del: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
