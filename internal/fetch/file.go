package fetch

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// FileFetcher reads vocabulary values from a newline-delimited text file.
// Blank lines and lines starting with '#' are skipped.
type FileFetcher struct {
	path string
}

// NewFileFetcher creates a fetcher for the given file path.
func NewFileFetcher(path string) *FileFetcher {
	return &FileFetcher{path: path}
}

// Path returns the file being read. The refresher watches it for changes.
func (f *FileFetcher) Path() string {
	return f.path
}

// Fetch reads the file and returns its deduplicated values.
func (f *FileFetcher) Fetch(ctx context.Context) ([]string, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open vocabulary file: %w", err)
	}
	defer file.Close()

	var values []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		values = append(values, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocabulary file: %w", err)
	}
	return Dedupe(values), nil
}
