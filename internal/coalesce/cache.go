// Package coalesce implements a request-coalescing cache: the single caller
// elected leader for a fingerprint key fetches from upstream while every
// concurrent caller for the same key blocks on a rendezvous mailbox instead
// of issuing its own request. It composes the store, lease, rendezvous and
// breaker packages the way a leadership-backed polling loop composes a
// cursor store and its own Redis client.
package coalesce

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/shaolim/pricecoalescer/internal/breaker"
	"github.com/shaolim/pricecoalescer/internal/lease"
	"github.com/shaolim/pricecoalescer/internal/log"
	"github.com/shaolim/pricecoalescer/internal/pricingerr"
	"github.com/shaolim/pricecoalescer/internal/rendezvous"
	"github.com/shaolim/pricecoalescer/internal/store"
)

// Fetcher produces the serialized value for a cache miss. It is invoked at
// most once per leader election, never concurrently for the same key.
type Fetcher func(ctx context.Context) ([]byte, error)

// Config bounds the cache's timing behavior; internal/config supplies the
// operational defaults.
type Config struct {
	FreshTTL        time.Duration
	StaleTTL        time.Duration
	LeaseTTL        time.Duration
	FollowerTimeout time.Duration
	FollowerRetries int
	FetchBudget     time.Duration
	// EnableStaleRetention controls whether successful fetches also populate
	// the stale fallback entry; disabling it means a breaker-open or
	// follower-timeout scenario has no stale value to serve.
	EnableStaleRetention bool
}

// Cache is the coalescing cache. One instance is shared across all
// fingerprint keys; its breaker is therefore process-wide, a single circuit
// over the one upstream oracle.
type Cache struct {
	store      store.Store
	lease      *lease.Lease
	rendezvous *rendezvous.Registry
	breaker    *breaker.Breaker
	cfg        Config
}

func New(s store.Store, b *breaker.Breaker, cfg Config) *Cache {
	return &Cache{
		store:      s,
		lease:      lease.New(s),
		rendezvous: rendezvous.New(s),
		breaker:    b,
		cfg:        cfg,
	}
}

func freshKey(k string) string { return "pricing:" + k }
func staleKey(k string) string { return "pricing:stale:" + k }
func lockKey(k string) string  { return "lock:pricing:" + k }

// Fetch returns the serialized value for k, coalescing concurrent callers
// behind a single upstream call per leader election.
func (c *Cache) Fetch(ctx context.Context, k string, fetcher Fetcher) ([]byte, error) {
	if v, ok := c.readFresh(ctx, k); ok {
		reportFreshHit("hit")
		return v, nil
	}
	reportFreshHit("miss")

	state := c.breaker.State()
	reportBreakerGate(state)
	if state == "open" {
		return c.staleOrDeny(ctx, k)
	}

	v, err := c.leaderOrFollower(ctx, k, fetcher)
	if err == lease.ErrUnavailable {
		return c.followerPath(ctx, k)
	}
	return v, err
}

// leaderOrFollower attempts to become leader for k. On success it runs the
// fetch under the lease and returns its result; ErrUnavailable signals the
// caller to fall back to the follower path.
func (c *Cache) leaderOrFollower(ctx context.Context, k string, fetcher Fetcher) ([]byte, error) {
	var result []byte
	var leaderErr error

	err := c.lease.WithLease(ctx, lockKey(k), c.cfg.LeaseTTL, func(ctx context.Context) error {
		reportLeaderElected()

		// Double-check under the lease: another leader may have already
		// populated the cache between our miss and winning the lease.
		if v, ok := c.readFresh(ctx, k); ok {
			result = v
			if err := c.rendezvous.DrainWaiters(ctx, k, v); err != nil {
				log.Errorf("coalesce: drain waiters %s: %v", k, err)
			}
			return nil
		}

		fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.FetchBudget)
		defer cancel()

		v, err := breaker.Call(fetchCtx, c.breaker, func(ctx context.Context) ([]byte, error) {
			return fetcher(ctx)
		})
		if err != nil {
			reportFetchOutcome("failure")
			// Followers are not sent a failure marker; they time out on their
			// own mailbox and apply the follower fallback policy themselves.
			if clearErr := c.rendezvous.ClearWaiters(ctx, k); clearErr != nil {
				log.Errorf("coalesce: clear waiters for %s: %v", k, clearErr)
			}
			leaderErr = c.translateFetchErr(err)
			return leaderErr
		}

		reportFetchOutcome("success")
		if err := c.writeFresh(ctx, k, v); err != nil {
			log.Errorf("coalesce: write fresh %s: %v", k, err)
		}
		if c.cfg.EnableStaleRetention {
			c.writeStale(ctx, k, v)
		}
		if err := c.rendezvous.DrainWaiters(ctx, k, v); err != nil {
			log.Errorf("coalesce: drain waiters %s: %v", k, err)
		}
		result = v
		return nil
	})

	if err == lease.ErrUnavailable {
		return nil, lease.ErrUnavailable
	}
	if err != nil {
		if leaderErr != nil {
			return nil, leaderErr
		}
		return nil, pricingerr.Wrap(err, "lease acquisition")
	}
	return result, nil
}

func (c *Cache) translateFetchErr(err error) error {
	if err == breaker.ErrOpen {
		return pricingerr.Wrap(pricingerr.ErrBreakerOpen, "breaker rejected leader probe")
	}
	return pricingerr.Wrap(pricingerr.ErrUpstream, err.Error())
}

// followerPath blocks on a rendezvous mailbox for k, retrying the entire
// wait up to cfg.FollowerRetries times with jittered exponential backoff
// before applying the fallback policy: re-check fresh, then stale, then
// raise WaitTimeout.
func (c *Cache) followerPath(ctx context.Context, k string) ([]byte, error) {
	backoff := 200 * time.Millisecond
	maxAttempts := 1 + c.cfg.FollowerRetries

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if v, ok := c.readFresh(ctx, k); ok {
			reportFollowerWait("delivered")
			return v, nil
		}

		h, err := c.rendezvous.Create(ctx, k)
		if err != nil {
			return nil, pricingerr.Wrap(err, "rendezvous create")
		}

		v, err := h.Wait(ctx, c.cfg.FollowerTimeout)
		if err == nil {
			reportFollowerWait("delivered")
			return v, nil
		}
		if err != rendezvous.ErrWaitTimeout {
			return nil, pricingerr.Wrap(err, "rendezvous wait")
		}

		if attempt < maxAttempts-1 {
			reportFollowerWait("retry")
			time.Sleep(jitteredBackoff(backoff))
			backoff *= 2
			continue
		}
	}

	reportFollowerWait("retry_exhausted")
	if v, ok := c.readFresh(ctx, k); ok {
		return v, nil
	}
	if v, ok := c.readStale(ctx, k); ok {
		reportStaleServed()
		return v, nil
	}
	reportServiceDenied()
	return nil, pricingerr.ErrWaitTimeout
}

// staleOrDeny implements the breaker-open gate: serve a stale value if one
// exists, otherwise surface ErrBreakerOpen so the adapter can translate it
// into a user-visible ServiceUnavailable.
func (c *Cache) staleOrDeny(ctx context.Context, k string) ([]byte, error) {
	if v, ok := c.readStale(ctx, k); ok {
		reportStaleServed()
		return v, nil
	}
	reportServiceDenied()
	return nil, pricingerr.ErrBreakerOpen
}

func (c *Cache) readFresh(ctx context.Context, k string) ([]byte, bool) {
	return c.readKey(ctx, freshKey(k))
}

func (c *Cache) readStale(ctx context.Context, k string) ([]byte, bool) {
	return c.readKey(ctx, staleKey(k))
}

func (c *Cache) readKey(ctx context.Context, key string) ([]byte, bool) {
	v, err := c.store.Get(ctx, key)
	if err != nil {
		if err != store.ErrNotFound {
			log.Errorf("coalesce: read %s: %v", key, err)
		}
		return nil, false
	}
	if !json.Valid(v) {
		log.Errorf("coalesce: corrupt cache entry at %s, treating as absent", key)
		return nil, false
	}
	return v, true
}

func (c *Cache) writeFresh(ctx context.Context, k string, v []byte) error {
	return c.store.Set(ctx, freshKey(k), v, c.cfg.FreshTTL)
}

func (c *Cache) writeStale(ctx context.Context, k string, v []byte) {
	if err := c.store.Set(ctx, staleKey(k), v, c.cfg.StaleTTL); err != nil {
		log.Errorf("coalesce: write stale %s: %v", k, err)
	}
}

// jitteredBackoff applies +/-20% jitter around base.
func jitteredBackoff(base time.Duration) time.Duration {
	delta := float64(base) * 0.2
	offset := (rand.Float64()*2 - 1) * delta
	return base + time.Duration(offset)
}
