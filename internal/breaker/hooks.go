package breaker

import "sync/atomic"

// Hooks defines optional observability callbacks. Core packages never
// import a metrics library directly; they call Report* functions that fan
// out to whatever was installed with WithHooks.
type Hooks struct {
	OnStateChange func(name, from, to string)
}

var injectedHooks atomic.Value

func init() {
	injectedHooks.Store(Hooks{})
}

// WithHooks installs callbacks globally; a zero value resets to no-op.
func WithHooks(h Hooks) {
	injectedHooks.Store(h)
}

func currentHooks() Hooks {
	return injectedHooks.Load().(Hooks)
}

// ReportStateChange notifies observers of a breaker phase transition.
func ReportStateChange(name, from, to string) {
	if cb := currentHooks().OnStateChange; cb != nil {
		cb(name, from, to)
	}
}
