package embedding

import (
	"context"

	"github.com/hyperjump/wakaru/pkg/utils"
)

// LexicalEmbedder is the degraded-mode embedder used when no model is
// available. It hashes the bag of tokens into a fixed-dimension vector, so
// cosine similarity between two lexical vectors measures token overlap.
// Scores are coarser than model embeddings but deterministic, and identical
// text always maps to the identical unit vector.
type LexicalEmbedder struct {
	dimensions int
}

// NewLexicalEmbedder returns a lexical embedder with the given dimensions.
func NewLexicalEmbedder(dimensions int) *LexicalEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &LexicalEmbedder{dimensions: dimensions}
}

// Embed returns the L2-normalized hashed bag-of-tokens vector for text.
// The zero vector is returned for text with no tokens.
func (e *LexicalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimensions)
	for _, token := range utils.Tokens(text) {
		vec[HashToken(token)%e.dimensions]++
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

// EmbedBatch calls Embed for each text.
func (e *LexicalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *LexicalEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for LexicalEmbedder.
func (e *LexicalEmbedder) Close() error {
	return nil
}
