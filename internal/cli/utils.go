// Package cli provides output helpers for the notesearch command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/notesearch/internal/models"
	"github.com/hyperjump/notesearch/pkg/utils"
)

// OutputFormat is the format of command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" (or "") and "json".
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", s)
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, response)
	}
	fmt.Fprintf(w, "Found %d results in %dms\n", response.Total, response.QueryTime)
	for i, result := range response.Results {
		title := result.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(w, "%3d. [%s %s] %s\n", i+1, result.ID.Kind, result.ID, utils.Truncate(title, 80))
	}
	return nil
}

// WriteRecord writes one record. The text form shows its id, title and the
// beginning of its body.
func WriteRecord(w io.Writer, r models.Record, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, r)
	}
	fmt.Fprintf(w, "ID: %s (%s)\n", r.Key(), r.Key().Kind)
	fmt.Fprintf(w, "Title: %s\n", r.IndexTitle())
	if body := r.IndexBody(); body != "" {
		fmt.Fprintf(w, "\n%s\n", TruncateWords(body, 40))
	}
	return nil
}

// WriteLanguages lists the supported analyzer languages, marking current.
func WriteLanguages(w io.Writer, current string, supported []string, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, map[string]interface{}{"current": current, "supported": supported})
	}
	if current == "" {
		fmt.Fprintln(w, "Current: (language-neutral)")
	} else {
		fmt.Fprintf(w, "Current: %s\n", current)
	}
	fmt.Fprintf(w, "Supported: %s\n", strings.Join(supported, " "))
	return nil
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
