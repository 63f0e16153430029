package lease

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/shaolim/pricecoalescer/internal/store"
)

func newTestLease(t *testing.T) (*Lease, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := store.NewRedisStore(client)
	cleanup := func() {
		_ = s.Close()
		mr.Close()
	}
	return New(s), mr, cleanup
}

func TestTryAcquireExclusivity(t *testing.T) {
	l, _, cleanup := newTestLease(t)
	defer cleanup()
	ctx := context.Background()

	ok, err := l.TryAcquire(ctx, "lock:k", "owner-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire failed: ok=%v err=%v", ok, err)
	}

	ok, err = l.TryAcquire(ctx, "lock:k", "owner-b", time.Minute)
	if err != nil {
		t.Fatalf("second acquire error: %v", err)
	}
	if ok {
		t.Fatalf("expected second acquire to fail while lease is held")
	}
}

func TestReleaseIsCompareAndDelete(t *testing.T) {
	l, _, cleanup := newTestLease(t)
	defer cleanup()
	ctx := context.Background()

	_, _ = l.TryAcquire(ctx, "lock:k", "owner-a", time.Minute)

	ok, err := l.Release(ctx, "lock:k", "owner-b")
	if err != nil {
		t.Fatalf("release error: %v", err)
	}
	if ok {
		t.Fatalf("release by non-owner must not delete the lease")
	}

	ok, err = l.TryAcquire(ctx, "lock:k", "owner-c", time.Minute)
	if err != nil || ok {
		t.Fatalf("lease should still belong to owner-a: ok=%v err=%v", ok, err)
	}

	ok, err = l.Release(ctx, "lock:k", "owner-a")
	if err != nil || !ok {
		t.Fatalf("owner release should succeed: ok=%v err=%v", ok, err)
	}
}

func TestWithLeaseExtendsAndReleases(t *testing.T) {
	l, mr, cleanup := newTestLease(t)
	defer cleanup()
	ctx := context.Background()

	ttl := 150 * time.Millisecond
	var ran int32

	err := l.WithLease(ctx, "lock:k", ttl, func(ctx context.Context) error {
		atomic.AddInt32(&ran, 1)
		// Outlive the raw TTL in ttl/2 steps of store time; between steps the
		// background extender (every ttl/5) must renew the lease, or the
		// second step would expire it.
		for i := 0; i < 4; i++ {
			time.Sleep(50 * time.Millisecond)
			mr.FastForward(ttl / 2)
		}
		exists, err := store.NewRedisStore(redisClientFromMiniredis(t, mr)).Exists(ctx, "lock:k")
		if err != nil {
			t.Fatalf("exists check failed: %v", err)
		}
		if !exists {
			t.Fatalf("expected lease to still be held after ttl due to auto-extension")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithLease returned error: %v", err)
	}
	if ran != 1 {
		t.Fatalf("expected body to run exactly once, ran=%d", ran)
	}

	exists, err := store.NewRedisStore(redisClientFromMiniredis(t, mr)).Exists(ctx, "lock:k")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatalf("expected lease to be released after WithLease returns")
	}
}

func TestWithLeaseUnavailableWhenHeld(t *testing.T) {
	l, _, cleanup := newTestLease(t)
	defer cleanup()
	ctx := context.Background()

	_, _ = l.TryAcquire(ctx, "lock:k", "owner-a", time.Minute)

	err := l.WithLease(ctx, "lock:k", time.Minute, func(ctx context.Context) error {
		t.Fatalf("body must not run when lease is unavailable")
		return nil
	})
	if err != ErrUnavailable {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestOnlyOneConcurrentHolder(t *testing.T) {
	l, _, cleanup := newTestLease(t)
	defer cleanup()
	ctx := context.Background()

	const n = 20
	var holders int32
	var maxConcurrent int32
	var wg sync.WaitGroup
	var mu sync.Mutex
	var current int32

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithLease(ctx, "lock:race", 5*time.Second, func(ctx context.Context) error {
				atomic.AddInt32(&holders, 1)
				mu.Lock()
				current++
				if current > maxConcurrent {
					maxConcurrent = current
				}
				mu.Unlock()
				time.Sleep(5 * time.Millisecond)
				mu.Lock()
				current--
				mu.Unlock()
				return nil
			})
			_ = err // ErrUnavailable is an expected outcome for losers
		}()
	}
	wg.Wait()

	if maxConcurrent > 1 {
		t.Fatalf("observed %d concurrent holders, want at most 1", maxConcurrent)
	}
	if holders == 0 {
		t.Fatalf("expected at least one goroutine to win the lease")
	}
}

func redisClientFromMiniredis(t *testing.T, mr *miniredis.Miniredis) *redis.Client {
	t.Helper()
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}
