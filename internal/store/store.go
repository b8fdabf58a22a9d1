// Package store provides vector stores that persist (vector, value) pairs and
// answer nearest-neighbor queries over them.
package store

import "context"

// Entry is a vocabulary value together with its embedding vector.
type Entry struct {
	Value  string
	Vector []float32
}

// Match is the result of a nearest-neighbor query. Score is cosine similarity
// (inner product of unit-normalized vectors, 0-1).
type Match struct {
	Value string
	Score float64
}

// Store persists embedded vocabulary values and answers nearest queries.
// All vectors in one store must come from the same embedder configuration;
// implementations reject entries and queries whose dimension disagrees.
type Store interface {
	// Upsert inserts entries, replacing the vector of any value already present.
	Upsert(ctx context.Context, entries []Entry) error
	// Remove deletes entries by value. Removing an absent value is a no-op.
	Remove(ctx context.Context, values []string) error
	// Apply commits upserts and removals as a single atomic change: either the
	// whole delta becomes visible or none of it does.
	Apply(ctx context.Context, upserts []Entry, removals []string) error
	// Nearest returns the single closest stored entry to the query vector.
	// Returns ErrNoMatch when the store is empty. Ties are broken
	// deterministically for a given store state.
	Nearest(ctx context.Context, query []float32) (*Match, error)
	// Values returns the values currently stored.
	Values(ctx context.Context) ([]string, error)
	// Len returns the number of stored entries.
	Len(ctx context.Context) (int, error)
	// Dimensions returns the vector dimension this store was created with.
	Dimensions() int
	Close() error
}
