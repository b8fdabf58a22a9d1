package store

import "fmt"

// Type identifies a store backend.
type Type string

const (
	// TypeMemory keeps entries in memory, optionally snapshotting to a file.
	// Good default for small vocabularies.
	TypeMemory Type = "memory"
	// TypeSQLite keeps entries in a SQLite database with transactional updates.
	TypeSQLite Type = "sqlite"
)

// New creates a store of the given type. For "memory" (the default when
// storeType is empty), path may be empty for a purely in-memory store.
// For "sqlite", path is the database file.
func New(storeType string, path string, dimensions int) (Store, error) {
	switch Type(storeType) {
	case TypeMemory, "":
		return NewMemoryStore(dimensions, path)
	case TypeSQLite:
		if path == "" {
			return nil, fmt.Errorf("sqlite store requires a path")
		}
		return NewSQLiteStore(path, dimensions)
	default:
		return nil, fmt.Errorf("unknown store type: %s (supported: memory, sqlite)", storeType)
	}
}
