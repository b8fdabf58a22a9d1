package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/ruiji/pkg/utils"
)

// SQLiteStore is a durable vector store backed by SQLite. Apply runs in a
// single transaction, so concurrent readers never observe a partial delta.
//
// Ties in Nearest are broken by lexicographically smallest value.
type SQLiteStore struct {
	db         *sql.DB
	dimensions int
}

// NewSQLiteStore opens or creates a SQLite-backed store at dbPath. Parent
// directories are created if they do not exist. The store records its vector
// dimension on first use; reopening with a different dimension is an error,
// since mixing embedding spaces corrupts nearest-neighbor results.
func NewSQLiteStore(dbPath string, dimensions int) (*SQLiteStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteStore{db: db, dimensions: dimensions}
	if err := s.checkDimensions(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		value TEXT PRIMARY KEY,
		vector BLOB NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS store_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

const metaKeyDimensions = "dimensions"

// checkDimensions records the store dimension on first open and verifies it
// on subsequent opens.
func (s *SQLiteStore) checkDimensions() error {
	var stored string
	err := s.db.QueryRow(`SELECT value FROM store_meta WHERE key = ?`, metaKeyDimensions).Scan(&stored)
	if err == sql.ErrNoRows {
		_, err = s.db.Exec(`INSERT INTO store_meta (key, value) VALUES (?, ?)`,
			metaKeyDimensions, strconv.Itoa(s.dimensions))
		if err != nil {
			return fmt.Errorf("failed to record dimensions: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read dimensions: %w", err)
	}
	dim, err := strconv.Atoi(stored)
	if err != nil {
		return fmt.Errorf("corrupt dimensions metadata %q: %w", stored, err)
	}
	if dim != s.dimensions {
		return fmt.Errorf("%w: database has %d, store expects %d", ErrDimensionMismatch, dim, s.dimensions)
	}
	return nil
}

// Upsert inserts entries, replacing vectors of values already present.
func (s *SQLiteStore) Upsert(ctx context.Context, entries []Entry) error {
	return s.Apply(ctx, entries, nil)
}

// Remove deletes entries by value. Absent values are ignored.
func (s *SQLiteStore) Remove(ctx context.Context, values []string) error {
	return s.Apply(ctx, nil, values)
}

// Apply commits upserts and removals in one transaction.
func (s *SQLiteStore) Apply(ctx context.Context, upserts []Entry, removals []string) error {
	for _, e := range upserts {
		if len(e.Vector) != s.dimensions {
			return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(e.Vector), s.dimensions)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	upsertStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (value, vector, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(value) DO UPDATE SET vector = excluded.vector, updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer upsertStmt.Close()

	for _, e := range upserts {
		if _, err := upsertStmt.ExecContext(ctx, e.Value, encodeVector(e.Vector)); err != nil {
			return fmt.Errorf("failed to upsert %q: %w", e.Value, err)
		}
	}
	for _, v := range removals {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE value = ?`, v); err != nil {
			return fmt.Errorf("failed to remove %q: %w", v, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Nearest scans all entries and returns the one with the highest inner product.
// Rows are scanned in value order so equal scores resolve deterministically.
func (s *SQLiteStore) Nearest(ctx context.Context, query []float32) (*Match, error) {
	if len(query) != s.dimensions {
		return nil, fmt.Errorf("%w: query has %d, store expects %d", ErrDimensionMismatch, len(query), s.dimensions)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT value, vector FROM entries ORDER BY value`)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	best := &Match{Score: math.Inf(-1)}
	found := false
	for rows.Next() {
		var value string
		var blob []byte
		if err := rows.Scan(&value, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		vec := decodeVector(blob)
		if len(vec) != s.dimensions {
			return nil, fmt.Errorf("%w: stored entry %q has %d", ErrDimensionMismatch, value, len(vec))
		}
		score := utils.InnerProduct(query, vec)
		if !found || score > best.Score {
			best.Value = value
			best.Score = score
			found = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}
	if !found {
		return nil, ErrNoMatch
	}
	return best, nil
}

// Values returns stored values in value order.
func (s *SQLiteStore) Values(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT value FROM entries ORDER BY value`)
	if err != nil {
		return nil, fmt.Errorf("failed to query values: %w", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// Len returns the number of stored entries.
func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

// Dimensions returns the vector dimension.
func (s *SQLiteStore) Dimensions() int {
	return s.dimensions
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
