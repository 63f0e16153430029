package prom

import (
	"sync"

	"github.com/shaolim/pricecoalescer/internal/breaker"
	"github.com/shaolim/pricecoalescer/internal/coalesce"
	"github.com/shaolim/pricecoalescer/internal/lease"
)

var registerOnce sync.Once

func installCoalesceHooks() {
	coalesce.WithHooks(coalesce.Hooks{
		OnFreshHit: func(result string) {
			CacheFreshHitTotal.WithLabelValues(result).Inc()
		},
		OnStaleServed: func() {
			CacheStaleServedTotal.WithLabelValues().Inc()
		},
		OnLeaderElected: func() {
			CacheLeaderElectedTotal.WithLabelValues().Inc()
		},
		OnFollowerWait: func(result string) {
			CacheFollowerWaitTotal.WithLabelValues(result).Inc()
		},
		OnBreakerGate: func(state string) {
			CacheBreakerGateTotal.WithLabelValues(state).Inc()
		},
		OnFetchOutcome: func(result string) {
			CacheFetchOutcomeTotal.WithLabelValues(result).Inc()
		},
		OnServiceDenied: func() {
			CacheServiceDeniedTotal.WithLabelValues().Inc()
		},
	})
}

func installLeaseHooks() {
	lease.WithHooks(lease.Hooks{
		OnAcquireAttempt: func(name, result string) {
			LeaseAcquireTotal.WithLabelValues(name, result).Inc()
		},
		OnExtendResult: func(name, result string) {
			LeaseExtendTotal.WithLabelValues(name, result).Inc()
		},
		OnRelease: func(name, result string) {
			LeaseReleaseTotal.WithLabelValues(name, result).Inc()
		},
	})
}

func installBreakerHooks() {
	breaker.WithHooks(breaker.Hooks{
		OnStateChange: func(name, from, to string) {
			BreakerStateChangeTotal.WithLabelValues(from, to).Inc()
		},
	})
}
