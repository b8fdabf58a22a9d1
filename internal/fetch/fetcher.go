// Package fetch provides fetchers that retrieve the current set of candidate
// values from an external source.
package fetch

import "context"

// Fetcher retrieves the complete, deduplicated set of vocabulary values from
// one source. Source errors propagate to the caller unmodified; fetchers do
// not retry internally.
type Fetcher interface {
	Fetch(ctx context.Context) ([]string, error)
}

// Dedupe returns values with duplicates and empty strings removed, preserving
// first-occurrence order.
func Dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
