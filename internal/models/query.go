package models

import "fmt"

// AnalyzeRequest is a routing request for a single user query.
type AnalyzeRequest struct {
	Query string `json:"query"`
	// Augment requests knowledge retrieval when the query is unambiguous.
	Augment bool `json:"augment,omitempty"`
	TopK    int  `json:"top_k,omitempty"`
	// MinSimilarity zero means unset and takes the configured default; a
	// negative value disables the floor entirely.
	MinSimilarity float64 `json:"min_similarity,omitempty"`
}

// QueryRequest is a direct knowledge retrieval request.
type QueryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
	// MinSimilarity zero means unset and takes the configured default; a
	// negative value disables the floor entirely.
	MinSimilarity float64 `json:"min_similarity,omitempty"`
}

// Validate checks the retrieval request and normalizes TopK and MinSimilarity
// against the given defaults.
func (q *QueryRequest) Validate(defaultTopK, maxTopK int, defaultMinSimilarity float64) error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.TopK <= 0 {
		q.TopK = defaultTopK
	}
	if q.TopK > maxTopK {
		q.TopK = maxTopK
	}
	q.MinSimilarity = NormalizeMinSimilarity(q.MinSimilarity, defaultMinSimilarity)
	return nil
}

// NormalizeMinSimilarity resolves a request similarity floor: zero means
// unset and yields the default, negative disables the floor.
func NormalizeMinSimilarity(v, defaultValue float64) float64 {
	if v == 0 {
		return defaultValue
	}
	if v < 0 {
		return 0
	}
	return v
}

// QueryAnalysis is the routing decision for one query. It is ephemeral:
// produced per request and never persisted.
type QueryAnalysis struct {
	Query              string   `json:"query"`
	Intent             string   `json:"intent"`
	Confidence         float64  `json:"confidence"`
	IsAmbiguous        bool     `json:"is_ambiguous"`
	NeedsClarification bool     `json:"needs_clarification"`
	AmbiguityReasons   []string `json:"ambiguity_reasons"`
	ClarifyingQuestion string   `json:"clarifying_question,omitempty"`
	// Results is populated only when the query is unambiguous and augmentation
	// was requested.
	Results []*Match `json:"results,omitempty"`
}

// IntentUnknown is the sentinel intent name when no centroid clears the floor.
const IntentUnknown = "unknown"
