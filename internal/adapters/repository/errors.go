package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound       = errors.New("workout not found")
	ErrDuplicateID    = errors.New("duplicate workout id")
	ErrInvalidSortKey = errors.New("invalid sort key")
)
