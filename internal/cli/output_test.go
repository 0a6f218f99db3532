package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/wakaru/internal/models"
)

func sampleMatches() []*models.Match {
	return []*models.Match{
		{
			Entry: &models.Entry{
				ID:      "e1",
				Title:   "Refund policy",
				Content: "Refunds are accepted within 30 days.",
				Source:  "manual",
			},
			Similarity: 0.8731,
			Rank:       1,
		},
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]OutputFormat{
		"":     OutputText,
		"text": OutputText,
		"json": OutputJSON,
	}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil {
			t.Errorf("ParseFormat(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseFormat(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

func TestWriteAnalysis_Text(t *testing.T) {
	analysis := &models.QueryAnalysis{
		Query:              "it",
		Intent:             "unknown",
		Confidence:         0.12,
		IsAmbiguous:        true,
		NeedsClarification: true,
		AmbiguityReasons:   []string{"vague_reference", "too_short"},
		ClarifyingQuestion: "I'm not sure what you're referring to. Could you provide more context?",
	}
	var buf bytes.Buffer
	if err := WriteAnalysis(&buf, analysis, OutputText); err != nil {
		t.Fatalf("WriteAnalysis: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Query:      it", "Intent:     unknown", "Confidence: 0.120", "Ambiguous:  true", "vague_reference, too_short", "Clarify:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteAnalysis_JSON(t *testing.T) {
	analysis := &models.QueryAnalysis{Query: "hello", Intent: "greeting", Confidence: 1.0}
	var buf bytes.Buffer
	if err := WriteAnalysis(&buf, analysis, OutputJSON); err != nil {
		t.Fatalf("WriteAnalysis: %v", err)
	}
	var decoded models.QueryAnalysis
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Intent != "greeting" || decoded.Confidence != 1.0 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteMatches_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMatches(&buf, sampleMatches(), OutputText); err != nil {
		t.Fatalf("WriteMatches: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Found 1 result(s)", "Rank: 1 | Similarity: 0.8731", "ID: e1", "Title: Refund policy", "Source: manual", "Refunds are accepted within 30 days."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteMatches_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMatches(&buf, nil, OutputText); err != nil {
		t.Fatalf("WriteMatches: %v", err)
	}
	if !strings.Contains(buf.String(), "No results.") {
		t.Errorf("output = %q, want no-results notice", buf.String())
	}
}

func TestWriteMatches_TruncatesLongContent(t *testing.T) {
	matches := sampleMatches()
	matches[0].Content = strings.Repeat("x", 500)
	var buf bytes.Buffer
	if err := WriteMatches(&buf, matches, OutputText); err != nil {
		t.Fatalf("WriteMatches: %v", err)
	}
	if strings.Contains(buf.String(), strings.Repeat("x", 300)) {
		t.Error("long content not truncated")
	}
	if !strings.Contains(buf.String(), "...") {
		t.Error("truncated content missing ellipsis")
	}
}

func TestWriteEntries(t *testing.T) {
	entries := []*models.Entry{
		{ID: "a", Title: "first", Source: "manual"},
		{ID: "b", Title: "second", Source: "file"},
	}
	var buf bytes.Buffer
	if err := WriteEntries(&buf, entries, OutputText); err != nil {
		t.Fatalf("WriteEntries: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "2 entries") {
		t.Errorf("output missing count:\n%s", out)
	}
	for _, want := range []string{"a  [manual]  first", "b  [file]  second"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := WriteEntries(&buf, entries[:1], OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "1 entry") {
		t.Errorf("singular form missing:\n%s", buf.String())
	}
}

func TestWriteStats(t *testing.T) {
	stats := &models.StoreStats{
		Entries:           4,
		VectorIndexSize:   4,
		Dimensions:        384,
		EmbedderAvailable: false,
		Model:             "lexical",
	}
	var buf bytes.Buffer
	if err := WriteStats(&buf, stats, OutputText); err != nil {
		t.Fatalf("WriteStats: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"entries:            4", "dimensions:         384", "embedder_available: false", "model:              lexical"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := WriteStats(&buf, stats, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.StoreStats
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Entries != 4 || decoded.Model != "lexical" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteEntries_JSON(t *testing.T) {
	entries := []*models.Entry{{ID: "a", Title: "first"}}
	var buf bytes.Buffer
	if err := WriteEntries(&buf, entries, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded []*models.Entry
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded) != 1 || decoded[0].ID != "a" {
		t.Errorf("decoded = %+v", decoded)
	}
}
