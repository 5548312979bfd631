// Package redisstore provides redis-backed implementations of the
// server's cache and store contracts.
package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// CodeStore tracks consumed authorization-code ids across nodes.
type CodeStore struct {
	rdb   *redis.Client
	keyNS string
}

func NewCodeStore(rdb *redis.Client, keyPrefix string) *CodeStore {
	if keyPrefix == "" {
		keyPrefix = "iam:code:used:"
	}
	return &CodeStore{rdb: rdb, keyNS: keyPrefix}
}

func (s *CodeStore) key(codeID string) string { return s.keyNS + codeID }

// MarkUsed sets the id with SETNX semantics. A false return means some
// node already redeemed this code.
func (s *CodeStore) MarkUsed(ctx context.Context, codeID string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, s.key(codeID), 1, ttl).Result()
}
