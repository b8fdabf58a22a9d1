package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPFetcher fetches vocabulary values from an HTTP endpoint returning a
// JSON array of strings.
type HTTPFetcher struct {
	url        string
	httpClient *http.Client
}

// NewHTTPFetcher creates a fetcher for the given URL.
func NewHTTPFetcher(url string) *HTTPFetcher {
	return &HTTPFetcher{
		url: url,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Fetch retrieves and decodes the value list.
func (f *HTTPFetcher) Fetch(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", f.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", f.url, resp.StatusCode)
	}

	var values []string
	if err := json.NewDecoder(resp.Body).Decode(&values); err != nil {
		return nil, fmt.Errorf("decode fetch response: %w", err)
	}
	return Dedupe(values), nil
}
