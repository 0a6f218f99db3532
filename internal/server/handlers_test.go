package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/wakaru/internal/ambiguity"
	"github.com/hyperjump/wakaru/internal/config"
	"github.com/hyperjump/wakaru/internal/embedding"
	"github.com/hyperjump/wakaru/internal/intent"
	"github.com/hyperjump/wakaru/internal/keyword"
	"github.com/hyperjump/wakaru/internal/knowledge"
	"github.com/hyperjump/wakaru/internal/models"
	"github.com/hyperjump/wakaru/internal/router"
	"github.com/hyperjump/wakaru/internal/storage"
	"github.com/hyperjump/wakaru/internal/vector"
)

func newTestServer(t *testing.T) (*httptest.Server, *knowledge.Store) {
	t.Helper()
	dir := t.TempDir()

	var cfg config.Config
	config.ApplyDefaults(&cfg)
	cfg.Storage.DatabasePath = filepath.Join(dir, "entries.db")
	cfg.Storage.VectorIndexPath = filepath.Join(dir, "vectors.bin")
	cfg.Storage.KeywordIndexPath = ""
	cfg.Embedding.Dimensions = 64

	entries, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	vectors, err := vector.NewIndex(cfg.Embedding.Dimensions)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	keywords, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	provider := embedding.NewStaticProvider(embedding.NewLexicalEmbedder(cfg.Embedding.Dimensions), false)
	store := knowledge.NewStore(entries, vectors, keywords, provider,
		knowledge.WithVectorPath(cfg.Storage.VectorIndexPath))
	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	classifier, err := intent.NewClassifier(context.Background(), provider, intent.DefaultCatalog(), cfg.Routing.UnknownIntentFloor, nil)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	detector := ambiguity.NewDetector(cfg.Routing.AmbiguityThreshold)
	rt := router.New(provider, classifier, detector, store, cfg.Routing, nil)

	srv := NewServer(rt, store, &cfg, zap.NewNop())
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts, store
}

func postBody(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHandleAnalyze(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postBody(t, ts.URL+"/api/v1/analyze", &models.AnalyzeRequest{Query: "What time is it?"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var analysis models.QueryAnalysis
	decode(t, resp, &analysis)
	if analysis.Intent != "time-query" {
		t.Errorf("intent = %q, want time-query", analysis.Intent)
	}
	if analysis.IsAmbiguous {
		t.Errorf("analysis = %+v, want unambiguous", analysis)
	}
}

func TestHandleAnalyze_AmbiguousQuery(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postBody(t, ts.URL+"/api/v1/analyze", &models.AnalyzeRequest{Query: "it"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var analysis models.QueryAnalysis
	decode(t, resp, &analysis)
	if !analysis.IsAmbiguous || analysis.ClarifyingQuestion == "" {
		t.Errorf("analysis = %+v, want ambiguous with a clarifying question", analysis)
	}
}

func TestHandleAnalyze_BadBody(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Post(ts.URL+"/api/v1/analyze", "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleAddKnowledge(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postBody(t, ts.URL+"/api/v1/knowledge", &models.EntryInput{Content: "The refund policy is 30 days."})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var entry models.Entry
	decode(t, resp, &entry)
	if entry.ID == "" {
		t.Error("created entry has empty id")
	}
	if entry.Title == "" {
		t.Error("created entry has empty title")
	}
}

func TestHandleAddKnowledge_EmptyContent(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := postBody(t, ts.URL+"/api/v1/knowledge", &models.EntryInput{Content: "   "})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleQueryKnowledge(t *testing.T) {
	ts, store := newTestServer(t)
	ctx := context.Background()
	if _, err := store.Add(ctx, &models.EntryInput{Content: "The refund policy is 30 days."}); err != nil {
		t.Fatal(err)
	}

	resp := postBody(t, ts.URL+"/api/v1/knowledge/query", &models.QueryRequest{Query: "refund policy", MinSimilarity: 0.5})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		Results []*models.Match `json:"results"`
		Count   int             `json:"count"`
	}
	decode(t, resp, &out)
	if out.Count != 1 || len(out.Results) != 1 {
		t.Fatalf("count = %d results = %d, want 1", out.Count, len(out.Results))
	}
	if out.Results[0].Rank != 1 {
		t.Errorf("rank = %d, want 1", out.Results[0].Rank)
	}
}

func TestHandleQueryKnowledge_EmptyQueryRejected(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := postBody(t, ts.URL+"/api/v1/knowledge/query", &models.QueryRequest{Query: ""})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleListKnowledge(t *testing.T) {
	ts, store := newTestServer(t)
	ctx := context.Background()
	_, _ = store.Add(ctx, &models.EntryInput{Content: "first"})
	_, _ = store.Add(ctx, &models.EntryInput{Content: "second"})

	resp, err := http.Get(ts.URL + "/api/v1/knowledge")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		Entries []*models.Entry `json:"entries"`
		Count   int             `json:"count"`
	}
	decode(t, resp, &out)
	if out.Count != 2 || len(out.Entries) != 2 {
		t.Errorf("count = %d entries = %d, want 2", out.Count, len(out.Entries))
	}
}

func TestHandleDeleteKnowledge(t *testing.T) {
	ts, store := newTestServer(t)
	entry, err := store.Add(context.Background(), &models.EntryInput{Content: "to be deleted"})
	if err != nil {
		t.Fatal(err)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/knowledge/"+entry.ID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		Deleted bool `json:"deleted"`
	}
	decode(t, resp, &out)
	if !out.Deleted {
		t.Error("deleted = false, want true")
	}

	// Deleting again reports absence, still 200.
	req2, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/knowledge/"+entry.ID, nil)
	resp2, err := http.DefaultClient.Do(req2)
	if err != nil {
		t.Fatal(err)
	}
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("second delete status = %d, want 200", resp2.StatusCode)
	}
	decode(t, resp2, &out)
	if out.Deleted {
		t.Error("second delete reported deleted = true")
	}
}

func TestHandleClearKnowledge(t *testing.T) {
	ts, store := newTestServer(t)
	ctx := context.Background()
	_, _ = store.Add(ctx, &models.EntryInput{Content: "one"})
	_, _ = store.Add(ctx, &models.EntryInput{Content: "two"})

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/knowledge", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		Removed int64 `json:"removed"`
	}
	decode(t, resp, &out)
	if out.Removed != 2 {
		t.Errorf("removed = %d, want 2", out.Removed)
	}
}

func TestHandleStatus(t *testing.T) {
	ts, store := newTestServer(t)
	_, _ = store.Add(context.Background(), &models.EntryInput{Content: "a fact"})

	resp, err := http.Get(ts.URL + "/api/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		Entries           int64                  `json:"entries"`
		VectorIndexSize   int                    `json:"vector_index_size"`
		EmbedderAvailable bool                   `json:"embedder_available"`
		Config            map[string]interface{} `json:"config"`
	}
	decode(t, resp, &out)
	if out.Entries != 1 || out.VectorIndexSize != 1 {
		t.Errorf("entries = %d vectors = %d, want 1/1", out.Entries, out.VectorIndexSize)
	}
	if out.EmbedderAvailable {
		t.Error("embedder_available = true for lexical fallback")
	}
	if out.Config["ambiguity_threshold"] != 0.7 {
		t.Errorf("ambiguity_threshold = %v, want 0.7", out.Config["ambiguity_threshold"])
	}
}

func TestHandleHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
