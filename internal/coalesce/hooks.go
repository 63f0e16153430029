package coalesce

import "sync/atomic"

// Hooks lets the daemon wire Prometheus (or any other sink) without this
// package importing a metrics client directly.
type Hooks struct {
	OnFreshHit       func(result string) // "hit" | "miss"
	OnStaleServed    func()
	OnLeaderElected  func()
	OnFollowerWait   func(result string) // "delivered" | "retry" | "retry_exhausted"
	OnBreakerGate    func(state string)  // state observed at the gate: "open" | "closed" | "half-open"
	OnFetchOutcome   func(result string) // "success" | "failure"
	OnServiceDenied  func()              // no fresh, no stale, breaker open or retries exhausted
}

var injectedHooks atomic.Value

func init() {
	injectedHooks.Store(Hooks{})
}

func WithHooks(h Hooks) {
	injectedHooks.Store(h)
}

func currentHooks() Hooks {
	return injectedHooks.Load().(Hooks)
}

func reportFreshHit(result string) {
	if cb := currentHooks().OnFreshHit; cb != nil {
		cb(result)
	}
}

func reportStaleServed() {
	if cb := currentHooks().OnStaleServed; cb != nil {
		cb()
	}
}

func reportLeaderElected() {
	if cb := currentHooks().OnLeaderElected; cb != nil {
		cb()
	}
}

func reportFollowerWait(result string) {
	if cb := currentHooks().OnFollowerWait; cb != nil {
		cb(result)
	}
}

func reportBreakerGate(state string) {
	if cb := currentHooks().OnBreakerGate; cb != nil {
		cb(state)
	}
}

func reportFetchOutcome(result string) {
	if cb := currentHooks().OnFetchOutcome; cb != nil {
		cb(result)
	}
}

func reportServiceDenied() {
	if cb := currentHooks().OnServiceDenied; cb != nil {
		cb()
	}
}
