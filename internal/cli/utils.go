// Package cli provides CLI output utilities for Ruiji.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hyperjump/ruiji/internal/models"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteMatch writes a match result to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteMatch(w io.Writer, match *models.MatchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(match)
	default:
		fmt.Fprintf(w, "%s (score %.4f)\n", match.Value, match.Score)
		return nil
	}
}

// WriteUpdateReport writes per-index update outcomes to w in the given format.
func WriteUpdateReport(w io.Writer, report *models.UpdateReport, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	default:
		for _, res := range report.Results {
			if res.Error != "" {
				fmt.Fprintf(w, "%s: FAILED: %s\n", res.Index, res.Error)
				continue
			}
			fmt.Fprintf(w, "%s: +%d -%d\n", res.Index, res.Added, res.Removed)
		}
		return nil
	}
}

// WriteStatuses writes index status rows to w in the given format.
func WriteStatuses(w io.Writer, statuses []models.IndexStatus, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	default:
		if len(statuses) == 0 {
			fmt.Fprintln(w, "no indexes configured")
			return nil
		}
		for _, s := range statuses {
			fmt.Fprintf(w, "%-20s %-14s %6d values", s.Name, s.State, s.Size)
			if s.LastError != "" {
				fmt.Fprintf(w, "  (last error: %s)", s.LastError)
			}
			fmt.Fprintln(w)
		}
		return nil
	}
}

// PrintMatch prints a match result to stdout in text format.
func PrintMatch(match *models.MatchResponse) {
	_ = WriteMatch(os.Stdout, match, OutputText)
}
