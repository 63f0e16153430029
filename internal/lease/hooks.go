package lease

import "sync/atomic"

// Hooks defines optional observability callbacks a caller can install to
// observe lease lifecycle events without this package importing a metrics
// library directly.
type Hooks struct {
	OnAcquireAttempt func(name, result string) // result: "won" | "lost" | "error"
	OnExtendResult   func(name, result string) // result: "renewed" | "lost" | "error"
	OnRelease        func(name, result string) // result: "released" | "mismatch" | "error"
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

func reportAcquireAttempt(name, result string) {
	if cb := currentHooks().OnAcquireAttempt; cb != nil {
		cb(name, result)
	}
}

func reportExtendResult(name, result string) {
	if cb := currentHooks().OnExtendResult; cb != nil {
		cb(name, result)
	}
}

func reportRelease(name, result string) {
	if cb := currentHooks().OnRelease; cb != nil {
		cb(name, result)
	}
}
