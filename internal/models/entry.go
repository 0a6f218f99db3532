// Package models defines core data structures for knowledge entries and query analysis.
package models

import "time"

// Entry is a stored knowledge entry. The content is the unit of retrieval;
// its embedding is computed once at creation and never mutated.
type Entry struct {
	ID        string                 `json:"id" db:"id"`
	Title     string                 `json:"title" db:"title"`
	Content   string                 `json:"content" db:"content"`
	Source    string                 `json:"source" db:"source"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}

// EntryInput is the input for creating a knowledge entry.
// ID is normally left empty and assigned by the store; ingestion sets it to a
// stable path-derived ID so a rewritten file replaces its previous entry.
type EntryInput struct {
	ID       string                 `json:"id,omitempty"`
	Title    string                 `json:"title,omitempty"`
	Content  string                 `json:"content"`
	Source   string                 `json:"source,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Match is a ranked retrieval hit: an entry with its cosine similarity to the query.
type Match struct {
	*Entry
	Similarity float64 `json:"similarity"`
	Rank       int     `json:"rank"`
}

// StoreStats reports knowledge store state for the status endpoint.
type StoreStats struct {
	Entries           int64  `json:"entries"`
	VectorIndexSize   int    `json:"vector_index_size"`
	Dimensions        int    `json:"dimensions"`
	EmbedderAvailable bool   `json:"embedder_available"`
	Model             string `json:"model,omitempty"`
}
