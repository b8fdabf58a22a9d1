package fetch

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	_ "github.com/mattn/go-sqlite3"
)

// Bare identifiers only; table and column names come from config, not users,
// but they are interpolated into SQL so they are validated anyway.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLFetcher fetches the distinct values of one column of one table. This is
// the primary source shape: the vocabulary is whatever values currently exist
// in a live database column.
type SQLFetcher struct {
	db     *sql.DB
	table  string
	column string
}

// NewSQLFetcher opens the SQLite database at dsn and fetches distinct values
// of column from table.
func NewSQLFetcher(dsn, table, column string) (*SQLFetcher, error) {
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if !identifierPattern.MatchString(column) {
		return nil, fmt.Errorf("invalid column name %q", column)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open source database: %w", err)
	}
	return &SQLFetcher{db: db, table: table, column: column}, nil
}

// Fetch returns the distinct non-null values of the configured column.
func (f *SQLFetcher) Fetch(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT DISTINCT "%s" FROM "%s" WHERE "%s" IS NOT NULL`, f.column, f.table, f.column)
	rows, err := f.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s.%s: %w", f.table, f.column, err)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate values: %w", err)
	}
	return Dedupe(values), nil
}

// Close closes the source database.
func (f *SQLFetcher) Close() error {
	return f.db.Close()
}
