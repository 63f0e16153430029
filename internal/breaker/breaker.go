// Package breaker implements a three-state (closed/open/half-open) failure
// detector gating calls to the upstream fetcher, built on
// github.com/sony/gobreaker/v2 rather than hand-rolling the state machine.
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/shaolim/pricecoalescer/internal/log"
)

// ErrOpen is returned when the breaker rejects a call without invoking the
// wrapped callable.
var ErrOpen = errors.New("breaker: open")

// Settings configures the breaker's thresholds.
type Settings struct {
	// Name identifies this breaker in logs and OnStateChange callbacks.
	Name string
	// FailureThreshold is the consecutive-failure count that trips closed -> open.
	FailureThreshold uint32
	// Cooldown is how long the breaker stays open before allowing a half-open probe.
	Cooldown time.Duration
	// HalfOpenMaxProbes bounds concurrent probe calls while half-open.
	HalfOpenMaxProbes uint32
}

func (s *Settings) setDefaults() {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 5
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 60 * time.Second
	}
	if s.HalfOpenMaxProbes == 0 {
		s.HalfOpenMaxProbes = 1
	}
}

// Breaker wraps a generic gobreaker.CircuitBreaker[any].
type Breaker struct {
	cb *gobreaker.CircuitBreaker[any]
}

// New builds a Breaker from Settings.
func New(settings Settings) *Breaker {
	settings.setDefaults()

	gb := gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.HalfOpenMaxProbes,
		Timeout:     settings.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			ReportStateChange(name, from.String(), to.String())
			log.Infof("breaker %s: %s -> %s", name, from, to)
		},
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker[any](gb)}
}

// Call runs fn through the breaker. A raised error counts as a breaker
// failure; a returned value counts as a success. When the breaker is open
// or the half-open probe slots are exhausted, fn is never invoked and
// ErrOpen is returned.
func Call[V any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (V, error)) (V, error) {
	var zero V

	result, err := b.cb.Execute(func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, ErrOpen
		}
		return zero, err
	}

	v, ok := result.(V)
	if !ok {
		return zero, nil
	}
	return v, nil
}

// State reports the breaker's current phase, mainly for observability.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
