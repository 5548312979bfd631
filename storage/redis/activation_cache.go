package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// ActivationCache holds pending account-activation codes keyed by
// username, expiring with the key's TTL.
type ActivationCache struct {
	rdb   *redis.Client
	keyNS string
}

func NewActivationCache(rdb *redis.Client, keyPrefix string) *ActivationCache {
	if keyPrefix == "" {
		keyPrefix = "iam:activation:"
	}
	return &ActivationCache{rdb: rdb, keyNS: keyPrefix}
}

func (c *ActivationCache) key(username string) string { return c.keyNS + username }

func (c *ActivationCache) Put(ctx context.Context, username, code string, ttl time.Duration) error {
	return c.rdb.Set(ctx, c.key(username), code, ttl).Err()
}

// Get returns the pending code, or "" when none exists or it expired.
func (c *ActivationCache) Get(ctx context.Context, username string) (string, error) {
	val, err := c.rdb.Get(ctx, c.key(username)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (c *ActivationCache) Delete(ctx context.Context, username string) error {
	return c.rdb.Del(ctx, c.key(username)).Err()
}
