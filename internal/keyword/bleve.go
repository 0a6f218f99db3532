// Package keyword provides a Bleve index over knowledge entries. It serves
// the lexical-overlap retrieval path used when the embedding model is
// unavailable.
package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"

	"github.com/hyperjump/wakaru/internal/models"
)

// analyzerName is the lowercase-only analyzer used for entry text. No
// stemming and no stop-word removal: the fallback must score queries like
// "what can you do" by plain token overlap, and a stop filter would strip
// every term of such a query.
const analyzerName = "entry_text"

// Result is a single keyword search hit. Scores are raw BM25 values;
// callers normalize them before comparing against similarity floors.
type Result struct {
	ID    string
	Score float64
}

// BleveIndex indexes entry title and content for keyword search.
type BleveIndex struct {
	index bleve.Index
}

// indexedEntry is the document shape stored in Bleve.
type indexedEntry struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path creates
// an in-memory index (used by tests and embedded setups).
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()
	if err := im.AddCustomAnalyzer(analyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("failed to register analyzer: %w", err)
	}
	im.DefaultAnalyzer = analyzerName

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = analyzerName
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	im.DefaultMapping = docMapping

	if path == "" {
		index, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index adds or replaces the entry in the index.
func (b *BleveIndex) Index(ctx context.Context, entry *models.Entry) error {
	return b.index.Index(entry.ID, &indexedEntry{Title: entry.Title, Content: entry.Content})
}

// Search runs a match query over title and content and returns up to limit hits.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = limit
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Result{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// Delete removes the entry from the index. Absent ids are a no-op.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// DeleteBatch removes all given ids in a single batch.
func (b *BleveIndex) DeleteBatch(ctx context.Context, ids []string) error {
	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	return b.index.Batch(batch)
}

// DocCount returns the number of indexed entries.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
