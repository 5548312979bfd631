// Package memorystore provides in-memory implementations of the server's
// cache and store contracts, for tests and single-node deployments.
package memorystore

import (
	"context"
	"sync"
	"time"
)

// CodeStore tracks consumed authorization-code ids with a TTL, so each
// code redeems at most once on this node.
type CodeStore struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	closed chan struct{}
}

// NewCodeStore starts a store with a minutely sweep of expired entries.
func NewCodeStore() *CodeStore {
	s := &CodeStore{seen: make(map[string]time.Time), closed: make(chan struct{})}
	go s.cleanupLoop()
	return s
}

// MarkUsed records the code id. It returns false when the id was already
// recorded and unexpired, meaning the code is being replayed.
func (s *CodeStore) MarkUsed(ctx context.Context, codeID string, ttl time.Duration) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if exp, ok := s.seen[codeID]; ok && now.Before(exp) {
		return false, nil
	}
	s.seen[codeID] = now.Add(ttl)
	return true, nil
}

func (s *CodeStore) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.closed:
			return
		}
	}
}

func (s *CodeStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, exp := range s.seen {
		if now.After(exp) {
			delete(s.seen, k)
		}
	}
}

// Close stops the background sweep.
func (s *CodeStore) Close() error {
	close(s.closed)
	return nil
}
