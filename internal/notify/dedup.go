package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const DefaultDedupTTL = 7 * 24 * time.Hour

// Deduplicator remembers which notifications were already sent.
type Deduplicator interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

type redisStore interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisDedup stores one key per sent notification with a TTL.
type RedisDedup struct {
	store  redisStore
	prefix string
	ttl    time.Duration
}

func NewRedisDedup(client *redis.Client, ttl time.Duration) *RedisDedup {
	return newRedisDedup(client, ttl)
}

func newRedisDedup(store redisStore, ttl time.Duration) *RedisDedup {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &RedisDedup{store: store, prefix: "notify:sent:", ttl: ttl}
}

func (d *RedisDedup) Seen(ctx context.Context, key string) (bool, error) {
	n, err := d.store.Exists(ctx, d.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("dedup lookup %s: %w", key, err)
	}
	return n > 0, nil
}

func (d *RedisDedup) Mark(ctx context.Context, key string) error {
	if err := d.store.SetNX(ctx, d.prefix+key, 1, d.ttl).Err(); err != nil {
		return fmt.Errorf("dedup mark %s: %w", key, err)
	}
	return nil
}
