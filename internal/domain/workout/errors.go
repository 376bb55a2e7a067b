package workout

import "errors"

// Sentinel kinds for workout errors.
var (
	ErrValidation = errors.New("invalid workout input")
	ErrInvalidID  = errors.New("invalid workout id")
)
