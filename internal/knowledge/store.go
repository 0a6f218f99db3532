// Package knowledge implements the persisted semantic knowledge store. It
// pairs the entry table (source of truth) with the vector index and the
// keyword index and keeps the three consistent.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/wakaru/internal/embedding"
	"github.com/hyperjump/wakaru/internal/keyword"
	"github.com/hyperjump/wakaru/internal/models"
	"github.com/hyperjump/wakaru/internal/storage"
	"github.com/hyperjump/wakaru/internal/vector"
	"github.com/hyperjump/wakaru/pkg/utils"
)

// ErrEmptyContent is returned by Add when content is empty or whitespace-only.
var ErrEmptyContent = errors.New("content cannot be empty")

// defaultTitleLen caps the auto-generated title taken from content.
const defaultTitleLen = 50

// Store is the knowledge store. Every entry has exactly one vector in the
// vector index under the same id; Add writes the entry row before the vector
// so a crash between the two is repaired on the next Initialize (the entry
// table wins).
type Store struct {
	entries  storage.EntryStorage
	vectors  *vector.Index
	keywords *keyword.BleveIndex
	provider *embedding.Provider

	vectorPath string
	logger     *zap.Logger
	mu         sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithVectorPath sets the vector file path; mutations persist the index there.
func WithVectorPath(path string) Option {
	return func(s *Store) { s.vectorPath = path }
}

// NewStore creates a knowledge store over the given entry storage, indices,
// and embedding provider.
func NewStore(
	entries storage.EntryStorage,
	vectors *vector.Index,
	keywords *keyword.BleveIndex,
	provider *embedding.Provider,
	opts ...Option,
) *Store {
	s := &Store{
		entries:  entries,
		vectors:  vectors,
		keywords: keywords,
		provider: provider,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize loads the persisted vector file and reconciles it with the entry
// table. Orphan vectors (no entry row) are dropped and missing vectors are
// recomputed from entry content, so an unreadable or diverged vector file
// degrades to a rebuild instead of a failure.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.vectors.Load(s.vectorPath); err != nil {
		s.logger.Warn("vector index unreadable, rebuilding from entries",
			zap.String("path", s.vectorPath), zap.Error(err))
	}

	entries, err := s.entries.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("list entries: %w", err)
	}
	entryIDs := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		entryIDs[e.ID] = struct{}{}
	}

	repaired := false
	for _, id := range s.vectors.IDs() {
		if _, ok := entryIDs[id]; !ok {
			s.vectors.Delete(id)
			repaired = true
		}
	}

	var missing []*models.Entry
	for _, e := range entries {
		if !s.vectors.Contains(e.ID) {
			missing = append(missing, e)
		}
	}
	if len(missing) > 0 {
		texts := make([]string, len(missing))
		for i, e := range missing {
			texts[i] = e.Content
		}
		vecs, err := s.provider.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("rebuild embeddings: %w", err)
		}
		for i, e := range missing {
			if err := s.vectors.Insert(e.ID, vecs[i]); err != nil {
				return fmt.Errorf("rebuild vector for %s: %w", e.ID, err)
			}
		}
		repaired = true
	}

	// The keyword index lives on disk too; if it lost sync with the entry
	// table, reindex everything (cheap at this corpus size).
	if count, err := s.keywords.DocCount(); err == nil && count != uint64(len(entries)) {
		for _, e := range entries {
			if err := s.keywords.Index(ctx, e); err != nil {
				return fmt.Errorf("reindex keyword for %s: %w", e.ID, err)
			}
		}
		repaired = true
	}

	if repaired {
		s.logger.Info("knowledge indices reconciled",
			zap.Int("entries", len(entries)),
			zap.Int("reembedded", len(missing)))
		s.persistLocked()
	}
	return nil
}

// Add validates and stores a new entry, computes its embedding, and indexes
// it. When input.ID names an existing entry, the old entry is replaced
// (delete + re-add) because the embedding must be recomputed.
func (s *Store) Add(ctx context.Context, input *models.EntryInput) (*models.Entry, error) {
	if strings.TrimSpace(input.Content) == "" {
		return nil, ErrEmptyContent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := input.ID
	if id == "" {
		id = uuid.New().String()
	} else {
		if _, err := s.deleteLocked(ctx, id); err != nil {
			return nil, err
		}
	}

	title := input.Title
	if title == "" {
		title = utils.Truncate(strings.TrimSpace(input.Content), defaultTitleLen)
	}
	source := input.Source
	if source == "" {
		source = "manual"
	}

	vec, err := s.provider.Embed(ctx, input.Content)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}

	entry := &models.Entry{
		ID:        id,
		Title:     title,
		Content:   input.Content,
		Source:    source,
		Metadata:  input.Metadata,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.entries.CreateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("store entry: %w", err)
	}
	if err := s.vectors.Insert(id, vec); err != nil {
		return nil, fmt.Errorf("index vector: %w", err)
	}
	if err := s.keywords.Index(ctx, entry); err != nil {
		return nil, fmt.Errorf("index keywords: %w", err)
	}

	s.persistLocked()
	s.logger.Debug("knowledge entry added",
		zap.String("id", id), zap.String("title", title), zap.String("source", source))
	return entry, nil
}

// Delete removes the entry from all structures. Deleting an unknown id is a
// no-op success: the desired end state (absence) already holds.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	found, err := s.deleteLocked(ctx, id)
	if err != nil {
		return false, err
	}
	if found {
		s.persistLocked()
	}
	return found, nil
}

func (s *Store) deleteLocked(ctx context.Context, id string) (bool, error) {
	found, err := s.entries.DeleteEntry(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete entry: %w", err)
	}
	s.vectors.Delete(id)
	if err := s.keywords.Delete(ctx, id); err != nil {
		return found, fmt.Errorf("delete keywords: %w", err)
	}
	return found, nil
}

// Clear empties the store and both indices, returning how many entries were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.entries.ListEntries(ctx)
	if err != nil {
		return 0, fmt.Errorf("list entries: %w", err)
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}

	count, err := s.entries.ClearEntries(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear entries: %w", err)
	}
	s.vectors.Clear()
	if err := s.keywords.DeleteBatch(ctx, ids); err != nil {
		return count, fmt.Errorf("clear keywords: %w", err)
	}
	s.persistLocked()
	s.logger.Info("knowledge store cleared", zap.Int64("removed", count))
	return count, nil
}

// Get returns the entry with the given id.
func (s *Store) Get(ctx context.Context, id string) (*models.Entry, error) {
	return s.entries.GetEntry(ctx, id)
}

// GetAll returns all entries ordered by creation time.
func (s *Store) GetAll(ctx context.Context) ([]*models.Entry, error) {
	return s.entries.ListEntries(ctx)
}

// Query encodes text and returns up to topK entries with similarity at or
// above minSimilarity. With the model unavailable it falls back to keyword
// search with max-normalized scores, so callers still never receive results
// below the floor.
func (s *Store) Query(ctx context.Context, text string, topK int, minSimilarity float64) ([]*models.Match, error) {
	if !s.provider.Available() {
		return s.keywordQuery(ctx, text, topK, minSimilarity)
	}
	vec, err := s.provider.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.QueryVector(ctx, vec, topK, minSimilarity)
}

// QueryVector is Query for callers that already hold the query embedding
// (the router embeds once and shares the vector).
func (s *Store) QueryVector(ctx context.Context, vec []float32, topK int, minSimilarity float64) ([]*models.Match, error) {
	hits, err := s.vectors.Query(vec, topK, minSimilarity)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	return s.resolve(ctx, hits)
}

// keywordQuery is the degraded-mode retrieval path. Raw BM25 scores are
// normalized by the maximum hit so the floor keeps its [0,1] meaning.
func (s *Store) keywordQuery(ctx context.Context, text string, topK int, minSimilarity float64) ([]*models.Match, error) {
	raw, err := s.keywords.Search(ctx, text, topK)
	if err != nil {
		return nil, fmt.Errorf("keyword query: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	maxScore := raw[0].Score
	for _, r := range raw {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}
	hits := make([]*vector.Result, 0, len(raw))
	for _, r := range raw {
		sim := 0.0
		if maxScore > 0 {
			sim = r.Score / maxScore
		}
		if sim < minSimilarity {
			continue
		}
		hits = append(hits, &vector.Result{ID: r.ID, Similarity: sim})
	}
	return s.resolve(ctx, hits)
}

func (s *Store) resolve(ctx context.Context, hits []*vector.Result) ([]*models.Match, error) {
	matches := make([]*models.Match, 0, len(hits))
	for _, hit := range hits {
		entry, err := s.entries.GetEntry(ctx, hit.ID)
		if err != nil {
			s.logger.Warn("indexed id missing from entry table", zap.String("id", hit.ID))
			continue
		}
		matches = append(matches, &models.Match{
			Entry:      entry,
			Similarity: hit.Similarity,
			Rank:       len(matches) + 1,
		})
	}
	return matches, nil
}

// Stats reports entry count, vector index size, dimension, and embedder mode.
func (s *Store) Stats(ctx context.Context) (*models.StoreStats, error) {
	count, err := s.entries.CountEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("count entries: %w", err)
	}
	available := s.provider.Available()
	model := "lexical"
	if available {
		model = "onnx"
	}
	return &models.StoreStats{
		Entries:           count,
		VectorIndexSize:   s.vectors.Size(),
		Dimensions:        s.vectors.Dimensions(),
		EmbedderAvailable: available,
		Model:             model,
	}, nil
}

// Persist saves the vector index to its configured path.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vectors.Save(s.vectorPath)
}

func (s *Store) persistLocked() {
	if err := s.vectors.Save(s.vectorPath); err != nil {
		s.logger.Warn("vector index save failed",
			zap.String("path", s.vectorPath), zap.Error(err))
	}
}

// Close persists the vector index and closes the entry table and keyword index.
func (s *Store) Close() error {
	if err := s.Persist(); err != nil {
		s.logger.Warn("vector index save on close failed", zap.Error(err))
	}
	var firstErr error
	if err := s.keywords.Close(); err != nil {
		firstErr = err
	}
	if err := s.entries.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
