// Package embedding provides text embedding via ONNX with a lexical fallback,
// plus caching and a lazily initialized provider.
package embedding

import "context"

// Embedder produces fixed-dimension vector embeddings for text. Vectors are
// L2-normalized so that inner product equals cosine similarity.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
