package store

import "errors"

// Sentinel errors shared by all store backends.
var (
	// ErrNoMatch is returned by Nearest when the store holds no entries.
	ErrNoMatch = errors.New("store: no match, store is empty")
	// ErrDimensionMismatch is returned when an entry or query vector does not
	// match the store's configured dimension.
	ErrDimensionMismatch = errors.New("store: vector dimension mismatch")
)
