// Package pricingerr declares the error taxonomy shared across the
// coalescing cache and its callers, built on github.com/pkg/errors for
// Wrap/Wrapf/Is/Cause.
package pricingerr

import "github.com/pkg/errors"

var (
	// ErrInvalidInput is Permanent: empty or malformed attributes. This is
	// surfaced as an empty result, never returned to the adapter caller as
	// an error.
	ErrInvalidInput = errors.New("pricingerr: invalid input")

	// ErrUpstream marks an upstream failure. Every non-200 status is wrapped
	// the same way, with the status code and body in the message; transient
	// and permanent statuses are not told apart.
	ErrUpstream = errors.New("pricingerr: upstream error")

	// ErrWaitTimeout is Transient: coalescing could not deliver a result
	// within the follower's wait budget.
	ErrWaitTimeout = errors.New("pricingerr: wait timed out")

	// ErrLeaseUnavailable is internal/Coordination-class. Nothing in this
	// module returns it: a lost lease election (lease.ErrUnavailable) is
	// handled inside internal/coalesce by switching to the follower path.
	ErrLeaseUnavailable = errors.New("pricingerr: lease unavailable")

	// ErrBreakerOpen is Saturation-class: the breaker rejected the call.
	ErrBreakerOpen = errors.New("pricingerr: breaker open")

	// ErrServiceUnavailable is the user-visible terminal error when neither
	// a fresh nor a stale value could be produced.
	ErrServiceUnavailable = errors.New("pricingerr: service unavailable")
)

// Wrap attaches message context to err while preserving Is/As matching
// against the sentinels above.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, message)
}

// Wrapf is the formatted variant of Wrap.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}

// Is reports whether err matches target anywhere in its chain.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Cause unwraps err to its root cause.
func Cause(err error) error {
	return errors.Cause(err)
}
