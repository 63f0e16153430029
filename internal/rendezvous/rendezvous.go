// Package rendezvous implements a per-follower single-slot mailbox:
// followers block on a store primitive rather than busy-polling.
package rendezvous

import (
	"context"
	"errors"
	"fmt"

	uuid "github.com/satori/go.uuid"

	"time"

	"github.com/shaolim/pricecoalescer/internal/store"
)

// ErrWaitTimeout is returned by Handle.Wait when no payload arrives before
// the deadline.
var ErrWaitTimeout = errors.New("rendezvous: wait timed out")

const (
	waitersKeyPrefix    = "waiters:pricing:"
	rendezvousKeyPrefix = "rendezvous:"
)

// WaitersKey derives the deterministic waiters-registry key for k, so the
// leader and every follower agree on the same name without coordination.
func WaitersKey(k string) string {
	return waitersKeyPrefix + k
}

// Registry creates and drains per-follower rendezvous mailboxes; one
// Registry serves every fingerprint key, each call naming its key.
type Registry struct {
	store store.Store
}

func New(s store.Store) *Registry {
	return &Registry{store: s}
}

// Handle owns one rendezvous mailbox until it is consumed or abandoned.
type Handle struct {
	store store.Store
	key   string
}

// Create allocates a rendezvous id, registers it into the waiters list for
// k (ordered, arrival-order append), and returns a Handle that owns it.
func (r *Registry) Create(ctx context.Context, k string) (*Handle, error) {
	id := uuid.NewV4().String()
	key := rendezvousKeyPrefix + id

	if err := r.store.RPush(ctx, WaitersKey(k), []byte(key)); err != nil {
		return nil, fmt.Errorf("rendezvous: register waiter: %w", err)
	}
	return &Handle{store: r.store, key: key}, nil
}

// Wait blocks on this handle's mailbox until a payload arrives or timeout
// elapses. Either way it deletes its own mailbox key before returning, so a
// timed-out follower never leaves a stale slot behind.
func (h *Handle) Wait(ctx context.Context, timeout time.Duration) ([]byte, error) {
	defer func() { _ = h.store.Del(ctx, h.key) }()

	payload, err := h.store.BLPop(ctx, h.key, timeout)
	if err != nil {
		if errors.Is(err, store.ErrTimeout) {
			return nil, ErrWaitTimeout
		}
		return nil, err
	}
	return payload, nil
}

// ClearWaiters discards the waiters list without publishing anything to the
// individual mailboxes. The leader calls this after a failed fetch:
// followers are not sent a failure marker, they simply time out on their
// own mailbox and apply the follower fallback policy. Any id left
// registered here is harmless — its follower's own Wait deadline reclaims
// it.
func (r *Registry) ClearWaiters(ctx context.Context, k string) error {
	return r.store.Del(ctx, WaitersKey(k))
}

// DrainWaiters is called by the leader after it has written the fresh cache
// entry. It pops waiter mailbox keys off the list in arrival order until the
// list is empty, pushing payload onto each one, then deletes the waiters
// list itself — defensive cleanup, since any id left behind expires
// naturally once its follower times out.
func (r *Registry) DrainWaiters(ctx context.Context, k string, payload []byte) error {
	waitersKey := WaitersKey(k)
	defer func() { _ = r.store.Del(ctx, waitersKey) }()

	for {
		mailbox, err := r.store.LPop(ctx, waitersKey)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("rendezvous: drain waiters: %w", err)
		}
		if err := r.store.RPush(ctx, string(mailbox), payload); err != nil {
			return fmt.Errorf("rendezvous: publish to %s: %w", mailbox, err)
		}
	}
}
