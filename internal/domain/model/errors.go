package model

import "errors"

// ErrUnknownKind is returned for intent kinds outside the known set.
var ErrUnknownKind = errors.New("unknown intent kind")
