package rendezvous

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/shaolim/pricecoalescer/internal/store"
)

func newTestRegistry(t *testing.T) (*Registry, func()) {
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
	return New(s), cleanup
}

func TestWaitTimeoutCleansUpMailbox(t *testing.T) {
	r, cleanup := newTestRegistry(t)
	defer cleanup()
	ctx := context.Background()

	h, err := r.Create(ctx, "k1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = h.Wait(ctx, 100*time.Millisecond)
	if err != ErrWaitTimeout {
		t.Fatalf("expected ErrWaitTimeout, got %v", err)
	}

	exists, err := r.store.Exists(ctx, h.key)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatalf("mailbox should be deleted after a timed-out wait")
	}
}

func TestDrainWaitersDeliversToAllFollowers(t *testing.T) {
	r, cleanup := newTestRegistry(t)
	defer cleanup()
	ctx := context.Background()

	const n = 10
	handles := make([]*Handle, n)
	for i := 0; i < n; i++ {
		h, err := r.Create(ctx, "k2")
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		handles[i] = h
	}

	var wg sync.WaitGroup
	results := make([][]byte, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = handles[i].Wait(ctx, 2*time.Second)
		}(i)
	}

	// Give the waiters a moment to register their blocking pops, then publish.
	time.Sleep(50 * time.Millisecond)
	if err := r.DrainWaiters(ctx, "k2", []byte("payload")); err != nil {
		t.Fatalf("drain: %v", err)
	}

	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("follower %d got error: %v", i, errs[i])
		}
		if string(results[i]) != "payload" {
			t.Fatalf("follower %d got %q, want payload", i, results[i])
		}
	}

	exists, err := r.store.Exists(ctx, WaitersKey("k2"))
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatalf("waiters list should be deleted after drain")
	}
}

func TestClearWaitersDeletesListWithoutPublishing(t *testing.T) {
	r, cleanup := newTestRegistry(t)
	defer cleanup()
	ctx := context.Background()

	h, err := r.Create(ctx, "k4")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := r.ClearWaiters(ctx, "k4"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	exists, err := r.store.Exists(ctx, WaitersKey("k4"))
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatalf("waiters list should be gone after ClearWaiters")
	}

	_, err = h.Wait(ctx, 100*time.Millisecond)
	if err != ErrWaitTimeout {
		t.Fatalf("expected follower to time out after ClearWaiters (no failure marker published), got %v", err)
	}
}

func TestDrainWaitersWithNoWaitersIsNoop(t *testing.T) {
	r, cleanup := newTestRegistry(t)
	defer cleanup()
	ctx := context.Background()

	if err := r.DrainWaiters(ctx, "k3", []byte("payload")); err != nil {
		t.Fatalf("drain on empty waiters list should be a no-op, got %v", err)
	}
}
