package store

import "errors"

// ErrInvalidRecord is returned when a stored record cannot be decoded.
var ErrInvalidRecord = errors.New("ordinal: invalid record")
