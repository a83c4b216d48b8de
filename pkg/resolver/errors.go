package resolver

import "errors"

var (
	// ErrNotCached indicates the requested POI has no live cache entry.
	ErrNotCached = errors.New("poi not cached")
	// ErrClosed indicates the controller has been shut down.
	ErrClosed = errors.New("resolver closed")
)
