// Package prom declares the Prometheus collectors for this daemon and wires
// them to each internal package's Hooks indirection, so internal/coalesce,
// internal/lease and internal/breaker never import a metrics client
// directly.
package prom

import "github.com/prometheus/client_golang/prometheus"

var (
	CacheFreshHitTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricecoalescer",
			Subsystem: "cache",
			Name:      "fresh_total",
			Help:      "Fresh cache reads partitioned by hit/miss.",
		},
		[]string{"result"},
	)

	CacheStaleServedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricecoalescer",
			Subsystem: "cache",
			Name:      "stale_served_total",
			Help:      "Number of requests served a stale cache entry.",
		},
		nil,
	)

	CacheLeaderElectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricecoalescer",
			Subsystem: "cache",
			Name:      "leader_elected_total",
			Help:      "Number of times a caller won leadership for a key.",
		},
		nil,
	)

	CacheFollowerWaitTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricecoalescer",
			Subsystem: "cache",
			Name:      "follower_wait_total",
			Help:      "Follower rendezvous outcomes partitioned by result.",
		},
		[]string{"result"},
	)

	CacheBreakerGateTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricecoalescer",
			Subsystem: "cache",
			Name:      "breaker_gate_total",
			Help:      "Breaker state observed at the pre-leader-election gate.",
		},
		[]string{"state"},
	)

	CacheFetchOutcomeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricecoalescer",
			Subsystem: "cache",
			Name:      "fetch_outcome_total",
			Help:      "Upstream fetch outcomes as observed by the leader.",
		},
		[]string{"result"},
	)

	CacheServiceDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricecoalescer",
			Subsystem: "cache",
			Name:      "service_denied_total",
			Help:      "Requests denied with no fresh or stale value available.",
		},
		nil,
	)

	LeaseAcquireTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricecoalescer",
			Subsystem: "lease",
			Name:      "acquire_total",
			Help:      "Lease acquisition attempts partitioned by name and result.",
		},
		[]string{"name", "result"},
	)

	LeaseExtendTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricecoalescer",
			Subsystem: "lease",
			Name:      "extend_total",
			Help:      "Lease extension attempts partitioned by name and result.",
		},
		[]string{"name", "result"},
	)

	LeaseReleaseTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricecoalescer",
			Subsystem: "lease",
			Name:      "release_total",
			Help:      "Lease release attempts partitioned by name and result.",
		},
		[]string{"name", "result"},
	)

	BreakerStateChangeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricecoalescer",
			Subsystem: "breaker",
			Name:      "state_change_total",
			Help:      "Breaker state transitions partitioned by from/to state.",
		},
		[]string{"from", "to"},
	)
)

// MustRegisterAll registers every collector exactly once and installs the
// hook wiring into the internal packages.
func MustRegisterAll() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			CacheFreshHitTotal,
			CacheStaleServedTotal,
			CacheLeaderElectedTotal,
			CacheFollowerWaitTotal,
			CacheBreakerGateTotal,
			CacheFetchOutcomeTotal,
			CacheServiceDeniedTotal,
			LeaseAcquireTotal,
			LeaseExtendTotal,
			LeaseReleaseTotal,
			BreakerStateChangeTotal,
		)

		installCoalesceHooks()
		installLeaseHooks()
		installBreakerHooks()
	})
}
