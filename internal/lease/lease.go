// Package lease implements a distributed, owned, auto-extending
// mutual-exclusion primitive: a named lock backed by a Store, held by a
// random owner token and kept alive by a background extender for as long
// as its holder's critical section runs.
package lease

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	uuid "github.com/satori/go.uuid"

	"github.com/shaolim/pricecoalescer/internal/log"
	"github.com/shaolim/pricecoalescer/internal/store"
)

// ErrUnavailable is returned by TryAcquire's callers (via WithLease) when the
// lock could not be won. WithLease never retries acquisition itself; retry
// policy belongs to the caller.
var ErrUnavailable = errors.New("lease: unavailable")

// Lease coordinates named mutual exclusion over a Store.
type Lease struct {
	store store.Store
}

func New(s store.Store) *Lease {
	return &Lease{store: s}
}

// NewOwner mints a fresh per-acquisition owner token.
func NewOwner() string {
	return uuid.NewV4().String()
}

// TryAcquire attempts atomic set-if-absent with expiry; it reports whether
// this caller became the holder.
func (l *Lease) TryAcquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	return l.store.SetNX(ctx, name, []byte(owner), ttl)
}

// Extend refreshes the expiry of name only if the current value still
// equals owner.
func (l *Lease) Extend(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	return l.store.CmpExpire(ctx, name, []byte(owner), ttl)
}

// Release deletes name only if the current value still equals owner,
// preventing a late holder from freeing a successor's lease.
func (l *Lease) Release(ctx context.Context, name, owner string) (bool, error) {
	ok, err := l.store.CmpDel(ctx, name, []byte(owner))
	if err != nil {
		// Coordination-class failure: log and treat as a no-op. The store's
		// own expiry will reclaim the lease eventually.
		log.Infof("lease: release compare-and-delete failed for %s: %v", name, err)
		reportRelease(name, "error")
		return false, nil
	}
	if !ok {
		log.Infof("lease: release of %s skipped, owner %s no longer holds it", name, owner)
		reportRelease(name, "mismatch")
	} else {
		reportRelease(name, "released")
	}
	return ok, nil
}

const extendFraction = 5 // extension interval = ttl/5, default 2s for a 60s lease

// WithLease attempts to acquire name for ttl; on success it spawns a
// background extender that renews every ttl/extendFraction, runs body, and
// on every exit path stops the extender and compare-deletes the lease.
// Returns ErrUnavailable without retrying if acquisition does not succeed.
func (l *Lease) WithLease(ctx context.Context, name string, ttl time.Duration, body func(ctx context.Context) error) error {
	owner := NewOwner()

	ok, err := l.TryAcquire(ctx, name, owner, ttl)
	if err != nil {
		reportAcquireAttempt(name, "error")
		return err
	}
	if !ok {
		reportAcquireAttempt(name, "lost")
		return ErrUnavailable
	}
	reportAcquireAttempt(name, "won")

	stop := make(chan struct{})
	var stopOnce sync.Once
	stopExtender := func() { stopOnce.Do(func() { close(stop) }) }

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.extendLoop(ctx, name, owner, ttl, stop)
	}()

	defer func() {
		stopExtender()
		wg.Wait()
		if _, err := l.Release(ctx, name, owner); err != nil {
			log.Infof("lease: release error for %s: %v", name, err)
		}
	}()

	return body(ctx)
}

func (l *Lease) extendLoop(ctx context.Context, name, owner string, ttl time.Duration, stop <-chan struct{}) {
	interval := ttl / extendFraction
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.extendWithRetry(ctx, name, owner, ttl)
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// extendWithRetry refreshes the lease once, retrying a single time on
// failure; a failed extension never kills the critical section.
func (l *Lease) extendWithRetry(ctx context.Context, name, owner string, ttl time.Duration) {
	ok, err := l.Extend(ctx, name, owner, ttl)
	if err == nil {
		if !ok {
			log.Infof("lease: lost ownership of %s during extend (owner %s)", name, owner)
			reportExtendResult(name, "lost")
		} else {
			reportExtendResult(name, "renewed")
		}
		return
	}

	log.Errorf("lease: extend failed for %s, retrying once: %v", name, err)
	time.Sleep(jitter(50 * time.Millisecond))
	ok, err = l.Extend(ctx, name, owner, ttl)
	if err != nil {
		log.Errorf("lease: extend retry failed for %s: %v", name, err)
		reportExtendResult(name, "error")
		return
	}
	if !ok {
		log.Infof("lease: lost ownership of %s during extend (owner %s)", name, owner)
		reportExtendResult(name, "lost")
		return
	}
	reportExtendResult(name, "renewed")
}

func jitter(base time.Duration) time.Duration {
	delta := time.Duration(rand.Int63n(int64(base)))
	return base/2 + delta/2
}
