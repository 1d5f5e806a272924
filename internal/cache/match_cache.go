package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/thereayou/matchmaker/internal/matchmaking"
)

const DefaultPrefix = "matchmaking:"

// MatchCache хранит ключи room:<name> и player:<id> в Redis с TTL.
type MatchCache struct {
	client *redis.Client
	prefix string
}

func NewMatchCache(client *redis.Client, prefix string) *MatchCache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &MatchCache{client: client, prefix: prefix}
}

func (c *MatchCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+key, value, ttl).Err()
}

func (c *MatchCache) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (c *MatchCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	return c.client.Del(ctx, full...).Err()
}

// ExpireSweep ничего не делает: Redis удаляет просроченные ключи сам.
func (c *MatchCache) ExpireSweep(ctx context.Context) (int, error) {
	return 0, nil
}

func (c *MatchCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

var _ matchmaking.MatchCache = (*MatchCache)(nil)
