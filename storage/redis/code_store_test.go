package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()}), mr
}

func TestCodeStoreSingleUse(t *testing.T) {
	rdb, _ := newTestClient(t)
	store := NewCodeStore(rdb, "")
	ctx := context.Background()

	first, err := store.MarkUsed(ctx, "code-1", time.Minute)
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if !first {
		t.Fatal("first redemption reported as replay")
	}
	second, err := store.MarkUsed(ctx, "code-1", time.Minute)
	if err != nil {
		t.Fatalf("mark again: %v", err)
	}
	if second {
		t.Error("replay not detected")
	}
}

func TestCodeStoreExpiry(t *testing.T) {
	rdb, mr := newTestClient(t)
	store := NewCodeStore(rdb, "")
	ctx := context.Background()

	if ok, err := store.MarkUsed(ctx, "code-2", time.Minute); err != nil || !ok {
		t.Fatalf("mark: ok=%v err=%v", ok, err)
	}
	mr.FastForward(2 * time.Minute)
	// After the consumption record lapses the id is reusable; the code
	// itself expired long before, so this is harmless.
	if ok, err := store.MarkUsed(ctx, "code-2", time.Minute); err != nil || !ok {
		t.Errorf("post-expiry mark: ok=%v err=%v", ok, err)
	}
}

func TestActivationCache(t *testing.T) {
	rdb, mr := newTestClient(t)
	cache := NewActivationCache(rdb, "")
	ctx := context.Background()

	if err := cache.Put(ctx, "alice", "123456", time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := cache.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "123456" {
		t.Errorf("got %q, want 123456", got)
	}

	if got, _ := cache.Get(ctx, "nobody"); got != "" {
		t.Errorf("missing key returned %q", got)
	}

	mr.FastForward(2 * time.Minute)
	if got, _ := cache.Get(ctx, "alice"); got != "" {
		t.Errorf("expired code returned %q", got)
	}

	if err := cache.Put(ctx, "bob", "654321", time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := cache.Delete(ctx, "bob"); err != nil {
		t.Fatal(err)
	}
	if got, _ := cache.Get(ctx, "bob"); got != "" {
		t.Errorf("deleted code returned %q", got)
	}
}
