// Package main is the Wakaru CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/wakaru/internal/ambiguity"
	"github.com/hyperjump/wakaru/internal/cli"
	"github.com/hyperjump/wakaru/internal/config"
	"github.com/hyperjump/wakaru/internal/embedding"
	"github.com/hyperjump/wakaru/internal/ingest"
	"github.com/hyperjump/wakaru/internal/intent"
	"github.com/hyperjump/wakaru/internal/keyword"
	"github.com/hyperjump/wakaru/internal/knowledge"
	"github.com/hyperjump/wakaru/internal/models"
	"github.com/hyperjump/wakaru/internal/router"
	"github.com/hyperjump/wakaru/internal/server"
	"github.com/hyperjump/wakaru/internal/storage"
	"github.com/hyperjump/wakaru/internal/vector"
	"github.com/hyperjump/wakaru/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/wakaru/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); a missing
// default file falls back to built-in defaults so the CLI works out of the box.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			var cfg config.Config
			config.ApplyDefaults(&cfg)
			return &cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "analyze":
		runAnalyze()
	case "add":
		runAdd()
	case "query":
		runQuery()
	case "list":
		runList()
	case "delete":
		runDelete()
	case "clear":
		runClear()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("wakaru version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ingestCtx, ingestCancel := context.WithCancel(context.Background())
	defer ingestCancel()
	if len(cfg.Ingest.Directories) > 0 {
		ing := ingest.NewIngester(
			components.Store,
			cfg.Ingest.Directories,
			cfg.Ingest.Extensions,
			cfg.Ingest.RecursiveOrDefault(),
			logger,
		)
		if err := ing.Start(ingestCtx); err != nil {
			logger.Fatal("Failed to start ingest watcher", zap.Error(err))
		}
		defer ing.Stop()
		go ing.SyncExisting(ingestCtx)
	}

	srv := server.NewServer(components.Router, components.Store, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ingestCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runAnalyze() {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = direct storage)")
	augment := fs.Bool("augment", true, "retrieve supporting knowledge when unambiguous")
	topK := fs.Int("top-k", 0, "max results to retrieve (0 = config default)")
	minSimilarity := fs.Float64("min-similarity", 0, "similarity floor (0 = config default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	req := &models.AnalyzeRequest{
		Query:         query,
		Augment:       *augment,
		TopK:          *topK,
		MinSimilarity: *minSimilarity,
	}

	var analysis *models.QueryAnalysis
	if *serverURL != "" {
		analysis = &models.QueryAnalysis{}
		if err := postJSON(*serverURL+"/api/v1/analyze", req, analysis); err != nil {
			fmt.Fprintf(os.Stderr, "Analyze failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		components := mustInitialize(*configPath)
		defer components.Close()
		analysis, err = components.Router.Analyze(context.Background(), req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Analyze failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteAnalysis(os.Stdout, analysis, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runAdd() {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = direct storage)")
	id := fs.String("id", "", "entry id (empty = generated; existing id replaces the entry)")
	title := fs.String("title", "", "entry title (empty = derived from content)")
	source := fs.String("source", "", "entry source label (default: manual)")
	_ = fs.Parse(os.Args[2:])

	content := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(content) == "" {
		fmt.Println("Usage: wakaru add [flags] <content>")
		os.Exit(1)
	}

	input := &models.EntryInput{ID: *id, Title: *title, Content: content, Source: *source}
	var entry models.Entry
	if *serverURL != "" {
		if err := postJSON(*serverURL+"/api/v1/knowledge", input, &entry); err != nil {
			fmt.Fprintf(os.Stderr, "Add failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		components := mustInitialize(*configPath)
		defer components.Close()
		added, err := components.Store.Add(context.Background(), input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Add failed: %v\n", err)
			os.Exit(1)
		}
		entry = *added
	}
	fmt.Printf("Entry added: %s\n", entry.ID)
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = direct storage)")
	topK := fs.Int("top-k", 0, "max results (0 = config default)")
	minSimilarity := fs.Float64("min-similarity", 0, "similarity floor (0 = config default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fmt.Println("Usage: wakaru query [flags] <query>")
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var matches []*models.Match
	if *serverURL != "" {
		var resp struct {
			Results []*models.Match `json:"results"`
		}
		req := &models.QueryRequest{Query: query, TopK: *topK, MinSimilarity: *minSimilarity}
		if err := postJSON(*serverURL+"/api/v1/knowledge/query", req, &resp); err != nil {
			fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
			os.Exit(1)
		}
		matches = resp.Results
	} else {
		components := mustInitialize(*configPath)
		defer components.Close()
		rc := components.Config.Routing
		req := &models.QueryRequest{Query: query, TopK: *topK, MinSimilarity: *minSimilarity}
		if err := req.Validate(rc.DefaultTopK, rc.MaxTopK, rc.DefaultMinSimilarity); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		matches, err = components.Store.Query(context.Background(), req.Query, req.TopK, req.MinSimilarity)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteMatches(os.Stdout, matches, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var entries []*models.Entry
	if *serverURL != "" {
		var resp struct {
			Entries []*models.Entry `json:"entries"`
		}
		if err := getJSON(*serverURL+"/api/v1/knowledge", &resp); err != nil {
			fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
			os.Exit(1)
		}
		entries = resp.Entries
	} else {
		components := mustInitialize(*configPath)
		defer components.Close()
		entries, err = components.Store.GetAll(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteEntries(os.Stdout, entries, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = direct storage)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: wakaru delete [flags] <entry-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)

	var found bool
	if *serverURL != "" {
		var resp struct {
			Deleted bool `json:"deleted"`
		}
		if err := deleteJSON(*serverURL+"/api/v1/knowledge/"+id, &resp); err != nil {
			fmt.Fprintf(os.Stderr, "Delete failed: %v\n", err)
			os.Exit(1)
		}
		found = resp.Deleted
	} else {
		components := mustInitialize(*configPath)
		defer components.Close()
		var err error
		found, err = components.Store.Delete(context.Background(), id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Delete failed: %v\n", err)
			os.Exit(1)
		}
	}
	if found {
		fmt.Printf("Entry deleted: %s\n", id)
	} else {
		fmt.Printf("Entry not found (already absent): %s\n", id)
	}
}

func runClear() {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = direct storage)")
	_ = fs.Parse(os.Args[2:])

	var removed int64
	if *serverURL != "" {
		var resp struct {
			Removed int64 `json:"removed"`
		}
		if err := deleteJSON(*serverURL+"/api/v1/knowledge", &resp); err != nil {
			fmt.Fprintf(os.Stderr, "Clear failed: %v\n", err)
			os.Exit(1)
		}
		removed = resp.Removed
	} else {
		components := mustInitialize(*configPath)
		defer components.Close()
		var err error
		removed, err = components.Store.Clear(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Clear failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("Knowledge store cleared (%d entries removed)\n", removed)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var stats models.StoreStats
	if *serverURL != "" {
		if err := getJSON(*serverURL+"/api/v1/status", &stats); err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		components := mustInitialize(*configPath)
		defer components.Close()
		s, err := components.Store.Stats(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		stats = *s
	}

	if err := cli.WriteStats(os.Stdout, &stats, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// Components holds initialized services for direct-storage commands.
type Components struct {
	Config   *config.Config
	Provider *embedding.Provider
	Store    *knowledge.Store
	Router   *router.Router
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Provider != nil {
		_ = c.Provider.Close()
	}
}

func mustInitialize(configPath string) *Components {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return components
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	entries, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	provider := embedding.NewProvider(embedding.Options{
		ModelPath:  cfg.Embedding.ModelPath,
		Dimensions: cfg.Embedding.Dimensions,
		MaxTokens:  cfg.Embedding.MaxTokens,
		CacheSize:  cfg.Embedding.CacheSize,
	}, logger)

	vectorIndex, err := vector.NewIndex(cfg.Embedding.Dimensions)
	if err != nil {
		_ = entries.Close()
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		_ = entries.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	store := knowledge.NewStore(entries, vectorIndex, keywordIndex, provider,
		knowledge.WithVectorPath(cfg.Storage.VectorIndexPath),
		knowledge.WithLogger(logger),
	)

	ctx := context.Background()
	if err := store.Initialize(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize knowledge store: %w", err)
	}

	catalog := cfg.Intents
	if len(catalog) == 0 {
		catalog = intent.DefaultCatalog()
	}
	classifier, err := intent.NewClassifier(ctx, provider, catalog, cfg.Routing.UnknownIntentFloor, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to build intent classifier: %w", err)
	}

	detector := ambiguity.NewDetector(cfg.Routing.AmbiguityThreshold)
	rt := router.New(provider, classifier, detector, store, cfg.Routing, logger)

	return &Components{
		Config:   cfg,
		Provider: provider,
		Store:    store,
		Router:   rt,
	}, nil
}

func postJSON(url string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func getJSON(url string, out interface{}) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func deleteJSON(url string, out interface{}) error {
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func printUsage() {
	fmt.Println(`wakaru - Semantic knowledge store and query-confidence engine

Usage:
  wakaru server [flags]             Start the HTTP server
  wakaru analyze [flags] <query>    Analyze a query (intent, ambiguity, retrieval)
  wakaru add [flags] <content>      Add a knowledge entry
  wakaru query [flags] <query>      Search the knowledge store
  wakaru list [flags]               List all knowledge entries
  wakaru delete [flags] <id>        Delete a knowledge entry
  wakaru clear [flags]              Remove all knowledge entries
  wakaru status [flags]             Show store/index status
  wakaru version                    Show version
  wakaru help                       Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/wakaru/config.yaml)
  --server string    Server URL (default: http://localhost:8080). Use empty
                     (--server "") for direct storage when no server is running.
  --output string    Output format: text or json (default: text)

Analyze Flags:
  --augment              Retrieve supporting knowledge when unambiguous (default: true)
  --top-k int            Max results to retrieve (default from config)
  --min-similarity float Similarity floor (default from config)

Add Flags:
  --id string        Entry id (empty = generated; existing id replaces the entry)
  --title string     Entry title (empty = derived from content)
  --source string    Entry source label (default: manual)

Examples:
  wakaru server
  wakaru analyze "What time is it?"
  wakaru analyze --output json "How do I get a refund?"
  wakaru add --title "Refunds" "The refund policy is 30 days."
  wakaru query --min-similarity 0.5 "refund policy"
  wakaru delete file:abc123
  wakaru status --output json`)
}
