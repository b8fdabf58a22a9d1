// Package models defines request, response, and report types shared by the
// HTTP API and the CLI.
package models

// MatchRequest asks one index for the stored value closest to Query.
type MatchRequest struct {
	Index string `json:"index"`
	Query string `json:"query"`
}

// MatchResponse is the nearest stored value and its similarity score.
type MatchResponse struct {
	Index string  `json:"index"`
	Query string  `json:"query"`
	Value string  `json:"value"`
	Score float64 `json:"score"`
}

// UpdateResult is one index's outcome from an update operation.
type UpdateResult struct {
	Index   string `json:"index"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
	Error   string `json:"error,omitempty"`
}

// UpdateReport aggregates update results across indexes.
type UpdateReport struct {
	Results []UpdateResult `json:"results"`
}

// Failed returns the results that carry an error.
func (r *UpdateReport) Failed() []UpdateResult {
	var failed []UpdateResult
	for _, res := range r.Results {
		if res.Error != "" {
			failed = append(failed, res)
		}
	}
	return failed
}

// IndexStatus describes one index for status reporting.
type IndexStatus struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	Size      int    `json:"size"`
	LastError string `json:"last_error,omitempty"`
}
