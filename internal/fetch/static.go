package fetch

import "context"

// StaticFetcher returns a fixed set of values. Useful for fixtures and for
// vocabularies that are known at configuration time.
type StaticFetcher struct {
	values []string
}

// NewStaticFetcher creates a fetcher returning the given values.
func NewStaticFetcher(values []string) *StaticFetcher {
	return &StaticFetcher{values: Dedupe(values)}
}

// Fetch returns the configured values.
func (f *StaticFetcher) Fetch(ctx context.Context) ([]string, error) {
	out := make([]string, len(f.values))
	copy(out, f.values)
	return out, nil
}
