package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
)

// wrapKind tags err with the operation and an error kind.
func wrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// newKind reports kind for op without an underlying cause.
func newKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}
