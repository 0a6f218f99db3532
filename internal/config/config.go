// Package config provides configuration loading and structs for the wakaru engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/wakaru/internal/intent"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool                `yaml:"debug"`
	Server    ServerConfig        `yaml:"server"`
	Storage   StorageConfig       `yaml:"storage"`
	Embedding EmbeddingConfig     `yaml:"embedding"`
	Routing   RoutingConfig       `yaml:"routing"`
	Intents   []intent.Definition `yaml:"intents"`
	Ingest    IngestConfig        `yaml:"ingest"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the entry database and the derived indices.
// The entry database is the source of truth; both indices can be rebuilt from it.
type StorageConfig struct {
	DatabasePath     string `yaml:"database_path"`
	VectorIndexPath  string `yaml:"vector_index_path"`
	KeywordIndexPath string `yaml:"keyword_index_path"`
}

// EmbeddingConfig holds ONNX embedder settings.
type EmbeddingConfig struct {
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// RoutingConfig holds the query-routing thresholds and retrieval defaults.
// The threshold values are deliberately configuration, not literals, so a
// deployment can tune them without a rebuild.
type RoutingConfig struct {
	// AmbiguityThreshold is the confidence below which a query without hard
	// heuristic hits is still routed to clarification.
	AmbiguityThreshold float64 `yaml:"ambiguity_threshold"`
	// UnknownIntentFloor is the similarity below which the best intent match
	// is reported as "unknown". It sits below AmbiguityThreshold.
	UnknownIntentFloor   float64 `yaml:"unknown_intent_floor"`
	DefaultTopK          int     `yaml:"default_top_k"`
	MaxTopK              int     `yaml:"max_top_k"`
	DefaultMinSimilarity float64 `yaml:"default_min_similarity"`
}

// IngestConfig holds plain-text ingest watch settings.
type IngestConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (c *IngestConfig) RecursiveOrDefault() bool {
	if c.Recursive != nil {
		return *c.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	cfg.Storage.KeywordIndexPath = expandPath(cfg.Storage.KeywordIndexPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Ingest.Directories {
		cfg.Ingest.Directories[i] = expandPath(cfg.Ingest.Directories[i], configDir)
	}

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
