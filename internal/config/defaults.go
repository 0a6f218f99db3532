package config

import "github.com/hyperjump/wakaru/internal/intent"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/wakaru/data/db/knowledge.db"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "/usr/local/var/wakaru/data/indices/vectors.bin"
	}
	if cfg.Storage.KeywordIndexPath == "" {
		cfg.Storage.KeywordIndexPath = "/usr/local/var/wakaru/data/indices/bleve"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/wakaru/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Routing.AmbiguityThreshold == 0 {
		cfg.Routing.AmbiguityThreshold = 0.7
	}
	if cfg.Routing.UnknownIntentFloor == 0 {
		cfg.Routing.UnknownIntentFloor = 0.3
	}
	if cfg.Routing.DefaultTopK == 0 {
		cfg.Routing.DefaultTopK = 3
	}
	if cfg.Routing.MaxTopK == 0 {
		cfg.Routing.MaxTopK = 50
	}
	if cfg.Routing.DefaultMinSimilarity == 0 {
		cfg.Routing.DefaultMinSimilarity = 0.6
	}
	if len(cfg.Intents) == 0 {
		cfg.Intents = intent.DefaultCatalog()
	}
	if cfg.Ingest.Extensions == nil {
		cfg.Ingest.Extensions = []string{".txt", ".md"}
	}
	if len(cfg.Ingest.Directories) > 0 && cfg.Ingest.Recursive == nil {
		t := true
		cfg.Ingest.Recursive = &t
	}
}
