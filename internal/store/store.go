// Package store defines the abstract shared key/value surface the
// coalescing cache, lease and rendezvous packages are built against, and a
// concrete Redis-backed implementation of it.
package store

import (
	"context"
	"time"
)

// Store is the minimal command surface every coordination primitive in this
// module needs from the shared store. It deliberately mirrors a small,
// widely-supported subset of Redis commands rather than the full client API,
// so an alternative backend only needs to implement twelve methods.
type Store interface {
	// Get returns the value at k, or ErrNotFound if absent.
	Get(ctx context.Context, k string) ([]byte, error)
	// Set writes v at k unconditionally with the given expiry.
	Set(ctx context.Context, k string, v []byte, ttl time.Duration) error
	// SetNX atomically writes v at k only if k is absent; reports whether it wrote.
	SetNX(ctx context.Context, k string, v []byte, ttl time.Duration) (bool, error)
	// CmpDel deletes k only if its current value equals expected; reports whether it deleted.
	CmpDel(ctx context.Context, k string, expected []byte) (bool, error)
	// CmpExpire refreshes k's TTL only if its current value equals expected; reports success.
	CmpExpire(ctx context.Context, k string, expected []byte, ttl time.Duration) (bool, error)
	// Del unconditionally deletes k.
	Del(ctx context.Context, k string) error
	// RPush appends v to the right of the list at k.
	RPush(ctx context.Context, k string, v []byte) error
	// LPush appends v to the left of the list at k.
	LPush(ctx context.Context, k string, v []byte) error
	// RPop removes and returns from the right of the list at k, or ErrNotFound if empty.
	RPop(ctx context.Context, k string) ([]byte, error)
	// LPop removes and returns from the left of the list at k, or ErrNotFound if empty.
	LPop(ctx context.Context, k string) ([]byte, error)
	// BLPop blocks up to timeout for a left-pop on k; returns ErrTimeout if none arrives.
	BLPop(ctx context.Context, k string, timeout time.Duration) ([]byte, error)
	// Exists reports whether k is currently present.
	Exists(ctx context.Context, k string) (bool, error)
}
