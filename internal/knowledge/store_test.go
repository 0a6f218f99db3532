package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/wakaru/internal/embedding"
	"github.com/hyperjump/wakaru/internal/keyword"
	"github.com/hyperjump/wakaru/internal/models"
	"github.com/hyperjump/wakaru/internal/storage"
	"github.com/hyperjump/wakaru/internal/vector"
)

const testDims = 32

type storePaths struct {
	db      string
	vectors string
	bleve   string
}

func testPaths(t *testing.T) storePaths {
	dir := t.TempDir()
	return storePaths{
		db:      filepath.Join(dir, "entries.db"),
		vectors: filepath.Join(dir, "vectors.bin"),
		bleve:   filepath.Join(dir, "keywords"),
	}
}

// openStore builds a store over the given paths. semantic selects the mock
// model embedder or the lexical fallback.
func openStore(t *testing.T, paths storePaths, semantic bool) *Store {
	t.Helper()
	entries, err := storage.NewSQLiteStorage(paths.db)
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	vectors, err := vector.NewIndex(testDims)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	keywords, err := keyword.NewBleveIndex(paths.bleve)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	var provider *embedding.Provider
	if semantic {
		provider = embedding.NewStaticProvider(embedding.NewMockEmbedder(testDims), true)
	} else {
		provider = embedding.NewStaticProvider(embedding.NewLexicalEmbedder(testDims), false)
	}
	store := NewStore(entries, vectors, keywords, provider, WithVectorPath(paths.vectors))
	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_AddRejectsEmptyContent(t *testing.T) {
	store := openStore(t, testPaths(t), true)
	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := store.Add(context.Background(), &models.EntryInput{Content: content})
		if !errors.Is(err, ErrEmptyContent) {
			t.Errorf("Add(%q) error = %v, want ErrEmptyContent", content, err)
		}
	}
}

func TestStore_AddDefaultsTitleAndSource(t *testing.T) {
	store := openStore(t, testPaths(t), true)
	long := strings.Repeat("refund policy details ", 5)

	entry, err := store.Add(context.Background(), &models.EntryInput{Content: long})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if entry.ID == "" {
		t.Error("generated id is empty")
	}
	if !strings.HasSuffix(entry.Title, "...") || len(entry.Title) != 53 {
		t.Errorf("default title = %q, want 50 chars plus ellipsis", entry.Title)
	}
	if entry.Source != "manual" {
		t.Errorf("default source = %q, want manual", entry.Source)
	}
}

func TestStore_SelfQueryRanksFirst(t *testing.T) {
	store := openStore(t, testPaths(t), true)
	ctx := context.Background()

	texts := []string{
		"The refund policy is 30 days.",
		"Shipping takes five business days.",
		"Support is available around the clock.",
	}
	ids := make([]string, len(texts))
	for i, text := range texts {
		entry, err := store.Add(ctx, &models.EntryInput{Content: text})
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		ids[i] = entry.ID
	}

	for i, text := range texts {
		matches, err := store.Query(ctx, text, 3, 0)
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if len(matches) == 0 {
			t.Fatalf("no matches for own content %q", text)
		}
		if matches[0].ID != ids[i] {
			t.Errorf("self-query top hit = %s, want %s", matches[0].ID, ids[i])
		}
		if matches[0].Similarity < 0.99 {
			t.Errorf("self similarity = %f, want >= 0.99", matches[0].Similarity)
		}
		if matches[0].Rank != 1 {
			t.Errorf("top hit rank = %d, want 1", matches[0].Rank)
		}
	}
}

func TestStore_AddWithExistingIDReplaces(t *testing.T) {
	store := openStore(t, testPaths(t), true)
	ctx := context.Background()

	first, err := store.Add(ctx, &models.EntryInput{ID: "note-1", Content: "Original content about billing."})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	second, err := store.Add(ctx, &models.EntryInput{ID: "note-1", Content: "Revised content about invoices."})
	if err != nil {
		t.Fatalf("Add replace: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("replacement changed id: %s vs %s", first.ID, second.ID)
	}

	entries, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries after replace, want 1", len(entries))
	}
	if entries[0].Content != "Revised content about invoices." {
		t.Errorf("content = %q, want revised text", entries[0].Content)
	}

	matches, err := store.Query(ctx, "Revised content about invoices.", 1, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "note-1" {
		t.Errorf("query after replace = %v, want note-1", matches)
	}
}

func TestStore_DeleteRemovesEverywhere(t *testing.T) {
	store := openStore(t, testPaths(t), true)
	ctx := context.Background()

	entry, err := store.Add(ctx, &models.EntryInput{Content: "Ephemeral fact."})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	found, err := store.Delete(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !found {
		t.Error("Delete existing = false, want true")
	}

	matches, err := store.Query(ctx, "Ephemeral fact.", 3, 0)
	if err != nil {
		t.Fatalf("Query after delete: %v", err)
	}
	for _, m := range matches {
		if m.ID == entry.ID {
			t.Error("deleted entry still returned by query")
		}
	}
}

func TestStore_DeleteUnknownIsNoOpSuccess(t *testing.T) {
	store := openStore(t, testPaths(t), true)
	found, err := store.Delete(context.Background(), "never-existed")
	if err != nil {
		t.Fatalf("Delete unknown: %v", err)
	}
	if found {
		t.Error("Delete unknown = true, want false")
	}
}

func TestStore_ClearThenQueryReturnsEmpty(t *testing.T) {
	store := openStore(t, testPaths(t), true)
	ctx := context.Background()

	_, _ = store.Add(ctx, &models.EntryInput{Content: "one"})
	_, _ = store.Add(ctx, &models.EntryInput{Content: "two"})

	removed, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 2 {
		t.Errorf("Clear removed = %d, want 2", removed)
	}

	matches, err := store.Query(ctx, "one", 3, 0)
	if err != nil {
		t.Fatalf("Query after clear: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("got %d matches after clear, want 0", len(matches))
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Entries != 0 || stats.VectorIndexSize != 0 {
		t.Errorf("stats after clear = %+v, want empty", stats)
	}
}

func TestStore_PersistRoundTrip(t *testing.T) {
	paths := testPaths(t)
	ctx := context.Background()

	store := openStore(t, paths, true)
	for _, text := range []string{"alpha fact", "beta fact", "gamma fact"} {
		if _, err := store.Add(ctx, &models.EntryInput{Content: text}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	origEntries, _ := store.GetAll(ctx)
	origMatches, _ := store.Query(ctx, "beta fact", 3, 0)
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := openStore(t, paths, true)
	entries, err := reopened.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll after reopen: %v", err)
	}
	if len(entries) != len(origEntries) {
		t.Fatalf("got %d entries after reopen, want %d", len(entries), len(origEntries))
	}
	for i := range entries {
		if entries[i].ID != origEntries[i].ID || entries[i].Content != origEntries[i].Content {
			t.Errorf("entry[%d] differs after reopen", i)
		}
	}
	matches, err := reopened.Query(ctx, "beta fact", 3, 0)
	if err != nil {
		t.Fatalf("Query after reopen: %v", err)
	}
	if len(matches) != len(origMatches) {
		t.Fatalf("got %d matches after reopen, want %d", len(matches), len(origMatches))
	}
	for i := range matches {
		if matches[i].ID != origMatches[i].ID {
			t.Errorf("match[%d] = %s, want %s", i, matches[i].ID, origMatches[i].ID)
		}
	}
}

func TestStore_InitializeRebuildsMissingVectors(t *testing.T) {
	paths := testPaths(t)
	ctx := context.Background()

	store := openStore(t, paths, true)
	entry, err := store.Add(ctx, &models.EntryInput{Content: "Fact that must survive a lost vector file."})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Simulate a lost vector file; the entry table stays authoritative.
	if err := os.Remove(paths.vectors); err != nil {
		t.Fatalf("remove vector file: %v", err)
	}

	reopened := openStore(t, paths, true)
	matches, err := reopened.Query(ctx, "Fact that must survive a lost vector file.", 1, 0)
	if err != nil {
		t.Fatalf("Query after rebuild: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != entry.ID {
		t.Fatalf("rebuild query = %v, want the original entry", matches)
	}
	if matches[0].Similarity < 0.99 {
		t.Errorf("rebuilt similarity = %f, want >= 0.99", matches[0].Similarity)
	}
}

func TestStore_InitializeDropsOrphanVectors(t *testing.T) {
	paths := testPaths(t)
	ctx := context.Background()

	// Write a vector file containing an id the entry table never had.
	orphans, _ := vector.NewIndex(testDims)
	vec := make([]float32, testDims)
	vec[0] = 1
	_ = orphans.Insert("orphan", vec)
	if err := orphans.Save(paths.vectors); err != nil {
		t.Fatalf("Save orphan index: %v", err)
	}

	store := openStore(t, paths, true)
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.VectorIndexSize != 0 {
		t.Errorf("vector index size = %d, want 0 after orphan drop", stats.VectorIndexSize)
	}
}

func TestStore_KeywordFallbackQuery(t *testing.T) {
	store := openStore(t, testPaths(t), false)
	ctx := context.Background()

	refund, err := store.Add(ctx, &models.EntryInput{Content: "The refund policy is 30 days."})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := store.Add(ctx, &models.EntryInput{Content: "Shipping takes five business days."}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	matches, err := store.Query(ctx, "How do I get a refund?", 3, 0.5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("fallback query returned no matches")
	}
	if matches[0].ID != refund.ID {
		t.Errorf("top fallback hit = %s, want the refund entry", matches[0].ID)
	}
	// Scores are normalized by the top hit, so rank 1 always clears the floor.
	if matches[0].Similarity != 1.0 {
		t.Errorf("top fallback similarity = %f, want 1.0", matches[0].Similarity)
	}
}

func TestStore_StatsReportsMode(t *testing.T) {
	semantic := openStore(t, testPaths(t), true)
	stats, err := semantic.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if !stats.EmbedderAvailable || stats.Model != "onnx" {
		t.Errorf("semantic stats = %+v, want available onnx", stats)
	}
	if stats.Dimensions != testDims {
		t.Errorf("dimensions = %d, want %d", stats.Dimensions, testDims)
	}

	lexical := openStore(t, testPaths(t), false)
	stats, err = lexical.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.EmbedderAvailable || stats.Model != "lexical" {
		t.Errorf("fallback stats = %+v, want unavailable lexical", stats)
	}
}
