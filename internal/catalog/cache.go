// internal/catalog/cache.go
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("menu cache miss")

// Cache holds the full item list between catalog changes.
type Cache interface {
	Get(ctx context.Context) ([]Item, error)
	Set(ctx context.Context, items []Item) error
	Invalidate(ctx context.Context) error
}

const menuCacheKey = "catalog:menu"

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context) ([]Item, error) {
	data, err := r.client.Get(ctx, menuCacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("unmarshal menu failed: %w", err)
	}
	return items, nil
}

func (r *RedisCache) Set(ctx context.Context, items []Item) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal menu failed: %w", err)
	}
	if err := r.client.Set(ctx, menuCacheKey, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Invalidate(ctx context.Context) error {
	if err := r.client.Del(ctx, menuCacheKey).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// NopCache always misses.
type NopCache struct{}

func (NopCache) Get(context.Context) ([]Item, error) { return nil, ErrCacheMiss }
func (NopCache) Set(context.Context, []Item) error { return nil }
func (NopCache) Invalidate(context.Context) error { return nil }
