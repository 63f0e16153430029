package store

import "errors"

// ErrNotFound is returned by Get/RPop/LPop when the key is absent.
var ErrNotFound = errors.New("store: key not found")

// ErrTimeout is returned by BLPop when no value arrives within the deadline.
var ErrTimeout = errors.New("store: blocking pop timed out")
