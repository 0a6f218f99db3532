// Package cli provides CLI output helpers for Wakaru.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/wakaru/internal/models"
	"github.com/hyperjump/wakaru/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat maps a flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch s {
	case "text", "":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnalysis writes a query analysis to w in the given format.
func WriteAnalysis(w io.Writer, analysis *models.QueryAnalysis, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, analysis)
	}
	fmt.Fprintf(w, "\nQuery:      %s\n", analysis.Query)
	fmt.Fprintf(w, "Intent:     %s\n", analysis.Intent)
	fmt.Fprintf(w, "Confidence: %.3f\n", analysis.Confidence)
	fmt.Fprintf(w, "Ambiguous:  %t\n", analysis.IsAmbiguous)
	if len(analysis.AmbiguityReasons) > 0 {
		fmt.Fprintf(w, "Reasons:    %s\n", strings.Join(analysis.AmbiguityReasons, ", "))
	}
	if analysis.ClarifyingQuestion != "" {
		fmt.Fprintf(w, "\nClarify: %s\n", analysis.ClarifyingQuestion)
	}
	if len(analysis.Results) > 0 {
		fmt.Fprintln(w)
		writeMatchesText(w, analysis.Results)
	}
	return nil
}

// WriteMatches writes retrieval results to w in the given format.
func WriteMatches(w io.Writer, matches []*models.Match, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, matches)
	}
	if len(matches) == 0 {
		fmt.Fprintln(w, "No results.")
		return nil
	}
	fmt.Fprintf(w, "\nFound %d result(s)\n\n", len(matches))
	writeMatchesText(w, matches)
	return nil
}

func writeMatchesText(w io.Writer, matches []*models.Match) {
	for _, m := range matches {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Similarity: %.4f\n", m.Rank, m.Similarity)
		fmt.Fprintf(w, "ID: %s\n", m.ID)
		if m.Title != "" {
			fmt.Fprintf(w, "Title: %s\n", m.Title)
		}
		if m.Source != "" {
			fmt.Fprintf(w, "Source: %s\n", m.Source)
		}
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(m.Content, 200))
	}
}

// WriteEntries writes a knowledge entry listing to w in the given format.
func WriteEntries(w io.Writer, entries []*models.Entry, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No entries.")
		return nil
	}
	fmt.Fprintf(w, "\n%d entr%s\n\n", len(entries), pluralYIES(len(entries)))
	for _, e := range entries {
		fmt.Fprintf(w, "%s  [%s]  %s\n", e.ID, e.Source, utils.Truncate(e.Title, 60))
	}
	return nil
}

// WriteStats writes store statistics to w in the given format.
func WriteStats(w io.Writer, stats *models.StoreStats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	fmt.Fprintf(w, "entries:            %d\n", stats.Entries)
	fmt.Fprintf(w, "vector_index_size:  %d\n", stats.VectorIndexSize)
	fmt.Fprintf(w, "dimensions:         %d\n", stats.Dimensions)
	fmt.Fprintf(w, "embedder_available: %t\n", stats.EmbedderAvailable)
	fmt.Fprintf(w, "model:              %s\n", stats.Model)
	return nil
}

func pluralYIES(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
