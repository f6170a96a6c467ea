package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// RedisAggregateCache stores serialized aggregates in Redis so every
// instance shares them.
type RedisAggregateCache struct {
	redisClient *redis.Client
}

func NewRedisAggregateCache(redisClient *redis.Client) *RedisAggregateCache {
	return &RedisAggregateCache{redisClient: redisClient}
}

func (c *RedisAggregateCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.redisClient.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}
	return data, true, nil
}

func (c *RedisAggregateCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.redisClient.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every key starting with prefix.
func (c *RedisAggregateCache) DeletePrefix(ctx context.Context, prefix string) error {
	var keys []string
	iter := c.redisClient.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.redisClient.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete %d keys: %w", len(keys), err)
	}
	slog.Debug("cache keys deleted", "prefix", prefix, "count", len(keys))
	return nil
}

// LocalAggregateCache is an in-process cache. It serves single-instance
// deployments and the first tier of TieredAggregateCache.
type LocalAggregateCache struct {
	cache *gocache.Cache
}

func NewLocalAggregateCache(defaultTTL, cleanupInterval time.Duration) *LocalAggregateCache {
	return &LocalAggregateCache{cache: gocache.New(defaultTTL, cleanupInterval)}
}

func (c *LocalAggregateCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	data, ok := v.([]byte)
	if !ok {
		c.cache.Delete(key)
		return nil, false, nil
	}
	return data, true, nil
}

func (c *LocalAggregateCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.cache.Set(key, value, ttl)
	return nil
}

func (c *LocalAggregateCache) DeletePrefix(_ context.Context, prefix string) error {
	for key := range c.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Delete(key)
		}
	}
	return nil
}

func (c *LocalAggregateCache) Flush() {
	c.cache.Flush()
}

// TieredAggregateCache checks the local tier before Redis. The local tier
// keeps entries for at most localTTL so a missed invalidation on another
// instance heals quickly.
type TieredAggregateCache struct {
	local    *LocalAggregateCache
	remote   SharedCache
	localTTL time.Duration
}

// SharedCache is the cross-instance tier, Redis in production.
type SharedCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

func NewTieredAggregateCache(local *LocalAggregateCache, remote SharedCache, localTTL time.Duration) *TieredAggregateCache {
	return &TieredAggregateCache{local: local, remote: remote, localTTL: localTTL}
}

func (c *TieredAggregateCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if data, ok, _ := c.local.Get(ctx, key); ok {
		return data, true, nil
	}
	data, ok, err := c.remote.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	c.local.Set(ctx, key, data, c.localTTL)
	return data, true, nil
}

func (c *TieredAggregateCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.local.Set(ctx, key, value, min(ttl, c.localTTL))
	return c.remote.Set(ctx, key, value, ttl)
}

func (c *TieredAggregateCache) DeletePrefix(ctx context.Context, prefix string) error {
	c.local.DeletePrefix(ctx, prefix)
	return c.remote.DeletePrefix(ctx, prefix)
}
