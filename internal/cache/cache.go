// Package cache keeps image descriptions in Redis. Stored images never change,
// so a description keyed by storage kind and identifier stays valid until its TTL.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/wb-go/wbf/redis"
)

type DescriptionCache interface {
	Get(ctx context.Context, id string) (string, bool, error)
	Set(ctx context.Context, id, description string) error
}

// kvStore - то, что нужно от wbf/redis.Client
type kvStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

type RedisCache struct {
	kv     kvStore
	prefix string
	ttl    time.Duration
}

// NewRedisCache - storageKind входит в ключ, чтобы одинаковые id разных хранилищ не пересекались
func NewRedisCache(client *redis.Client, storageKind string, ttl time.Duration) *RedisCache {
	return newRedisCache(client, storageKind, ttl)
}

func newRedisCache(kv kvStore, storageKind string, ttl time.Duration) *RedisCache {
	return &RedisCache{kv: kv, prefix: "description:" + storageKind + ":", ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, id string) (string, bool, error) {
	v, err := c.kv.Get(ctx, c.prefix+id)
	if err != nil {
		if errors.Is(err, redis.NoMatches) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, id, description string) error {
	return c.kv.SetWithExpiration(ctx, c.prefix+id, description, c.ttl)
}

// Noop - кэш выключен
type Noop struct{}

func (Noop) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (Noop) Set(context.Context, string, string) error         { return nil }
