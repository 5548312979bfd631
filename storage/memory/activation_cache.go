package memorystore

import (
	"context"
	"sync"
	"time"
)

// ActivationCache holds pending account-activation codes keyed by
// username, each with its own TTL.
type ActivationCache struct {
	mu   sync.Mutex
	data map[string]codeEntry
}

type codeEntry struct {
	code string
	exp  time.Time
}

func NewActivationCache() *ActivationCache {
	return &ActivationCache{data: make(map[string]codeEntry)}
}

func (c *ActivationCache) Put(ctx context.Context, username, code string, ttl time.Duration) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[username] = codeEntry{code: code, exp: time.Now().Add(ttl)}
	return nil
}

// Get returns the pending code, or "" when none exists or it expired.
func (c *ActivationCache) Get(ctx context.Context, username string) (string, error) {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.data[username]
	if !ok {
		return "", nil
	}
	if time.Now().After(e.exp) {
		delete(c.data, username)
		return "", nil
	}
	return e.code, nil
}

func (c *ActivationCache) Delete(ctx context.Context, username string) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, username)
	return nil
}
