package fetch

import "fmt"

// Type identifies a fetcher backend.
type Type string

const (
	// TypeSQL fetches distinct values of a database column.
	TypeSQL Type = "sql"
	// TypeHTTP fetches a JSON string array from an endpoint.
	TypeHTTP Type = "http"
	// TypeFile reads newline-delimited values from a file.
	TypeFile Type = "file"
	// TypeStatic returns values fixed in configuration.
	TypeStatic Type = "static"
)

// Config selects and configures a fetcher backend.
type Config struct {
	Type string

	// SQL settings.
	DSN    string
	Table  string
	Column string

	// HTTP settings.
	URL string

	// File settings.
	Path string

	// Static settings.
	Values []string
}

// New creates a fetcher for the configured source type.
func New(cfg Config) (Fetcher, error) {
	switch Type(cfg.Type) {
	case TypeSQL:
		return NewSQLFetcher(cfg.DSN, cfg.Table, cfg.Column)
	case TypeHTTP:
		if cfg.URL == "" {
			return nil, fmt.Errorf("http source requires a url")
		}
		return NewHTTPFetcher(cfg.URL), nil
	case TypeFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("file source requires a path")
		}
		return NewFileFetcher(cfg.Path), nil
	case TypeStatic:
		return NewStaticFetcher(cfg.Values), nil
	default:
		return nil, fmt.Errorf("unknown source type: %s (supported: sql, http, file, static)", cfg.Type)
	}
}
