package hub

import "errors"

// ErrInvalidPortCount reports a non-positive port count at construction.
var ErrInvalidPortCount = errors.New("port count must be positive")

// ErrNotOpen reports an operation that requires open endpoints while the
// hub is closed.
var ErrNotOpen = errors.New("hub is not open")
