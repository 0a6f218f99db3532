package embedding

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Options configures the lazy model load.
type Options struct {
	ModelPath  string
	Dimensions int
	MaxTokens  int
	CacheSize  int
}

// Provider owns the process-wide embedder. Initialization is lazy and happens
// exactly once: the first call (model load cost is nontrivial) tries the ONNX
// model, and on failure switches to the lexical embedder instead of failing
// the caller. Available reports whether the semantic model is in use; in
// either mode Embed always yields a usable vector.
type Provider struct {
	opts   Options
	logger *zap.Logger

	once     sync.Once
	embedder Embedder
	semantic bool
}

// NewProvider creates a provider for the given model options. Nothing is
// loaded until the first Embed/Available call.
func NewProvider(opts Options, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{opts: opts, logger: logger}
}

// NewStaticProvider wraps an already constructed embedder, bypassing lazy
// initialization. semantic controls what Available reports. Used for wiring
// tests and embedded setups.
func NewStaticProvider(e Embedder, semantic bool) *Provider {
	p := &Provider{logger: zap.NewNop()}
	p.once.Do(func() {
		p.embedder = e
		p.semantic = semantic
	})
	return p
}

func (p *Provider) init() {
	onnx, err := NewONNXEmbedder(p.opts.ModelPath, p.opts.Dimensions, p.opts.MaxTokens, p.opts.CacheSize)
	if err != nil {
		p.logger.Warn("embedding model unavailable, using lexical fallback",
			zap.String("model_path", p.opts.ModelPath),
			zap.Error(err))
		p.embedder = NewLexicalEmbedder(p.opts.Dimensions)
		p.semantic = false
		return
	}
	p.logger.Info("embedding model loaded",
		zap.String("model_path", p.opts.ModelPath),
		zap.Int("dimensions", p.opts.Dimensions))
	p.embedder = onnx
	p.semantic = true
}

// Available reports whether the semantic model is in use. When false, all
// similarity scores come from the lexical fallback and are coarser.
func (p *Provider) Available() bool {
	p.once.Do(p.init)
	return p.semantic
}

// Embed returns the embedding for text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.once.Do(p.init)
	return p.embedder.Embed(ctx, text)
}

// EmbedBatch returns embeddings for all texts.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.once.Do(p.init)
	return p.embedder.EmbedBatch(ctx, texts)
}

// Dimensions returns the embedding dimension.
func (p *Provider) Dimensions() int {
	p.once.Do(p.init)
	return p.embedder.Dimensions()
}

// Close releases the underlying embedder if it was initialized.
func (p *Provider) Close() error {
	if p.embedder != nil {
		return p.embedder.Close()
	}
	return nil
}
