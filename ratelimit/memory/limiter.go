// Package memorylimiter throttles login attempts on a single node. It
// mirrors the redis limiter's contract for deployments without redis.
package memorylimiter

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limit caps attempts per window for one bucket.
type Limit struct {
	Limit  int
	Window time.Duration
}

var defaultLimit = Limit{Limit: 10, Window: time.Minute}

// Limiter is an in-memory sliding-window limiter.
type Limiter struct {
	mu      sync.Mutex
	limits  map[string]Limit
	buckets map[string][]int64
}

func New(limits map[string]Limit) *Limiter {
	if limits == nil {
		limits = map[string]Limit{}
	}
	return &Limiter{limits: limits, buckets: make(map[string][]int64)}
}

func (l *Limiter) limit(bucket string) Limit {
	if v, ok := l.limits[bucket]; ok {
		return v
	}
	return defaultLimit
}

// AllowNamed records one attempt and reports whether it fits the window.
// Denied attempts are not recorded, so a locked-out caller does not keep
// extending its own lockout.
func (l *Limiter) AllowNamed(_ context.Context, bucket, key string) (bool, error) {
	if l == nil {
		return true, nil
	}
	if bucket == "" || key == "" {
		return false, fmt.Errorf("bucket and key required")
	}

	lim := l.limit(bucket)
	now := time.Now().UnixMilli()
	start := now - lim.Window.Milliseconds()
	limitKey := bucket + ":" + key

	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.buckets[limitKey]
	keep := 0
	for keep < len(ts) && ts[keep] < start {
		keep++
	}
	ts = ts[keep:]

	if len(ts) >= lim.Limit {
		l.buckets[limitKey] = ts
		return false, nil
	}
	l.buckets[limitKey] = append(ts, now)
	return true, nil
}
