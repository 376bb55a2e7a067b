package persistence

import "errors"

// Sentinel kinds for persistence errors.
var (
	// ErrCorrupt means stored data exists but cannot be decoded.
	ErrCorrupt = errors.New("stored workouts are corrupt")
	// ErrBackend wraps failures of the underlying key-value store.
	ErrBackend = errors.New("storage backend failed")
)
