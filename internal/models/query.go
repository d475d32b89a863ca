package models

import "fmt"

// Result is one search hit: the record id and its stored title.
type Result struct {
	ID    UniqueID `json:"id"`
	Title string   `json:"title"`
}

// SearchQuery is a search request as received by the HTTP API and CLI.
type SearchQuery struct {
	Query    string `json:"query"`
	Limit    int    `json:"limit,omitempty"`
	Language string `json:"language,omitempty"`
}

// Validate rejects an empty query and clamps Limit into [1, maxLimit];
// a zero Limit becomes defaultLimit.
func (q *SearchQuery) Validate(defaultLimit, maxLimit int) error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return nil
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []Result `json:"results"`
	Total     int      `json:"total"`
	QueryTime int64    `json:"query_time_ms"`
	Query     string   `json:"query"`
	Language  string   `json:"language"`
}
