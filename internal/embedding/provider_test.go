package embedding

import (
	"context"
	"testing"
)

func TestProvider_FallsBackWhenModelMissing(t *testing.T) {
	p := NewProvider(Options{
		ModelPath:  "/nonexistent/model.onnx",
		Dimensions: 32,
		MaxTokens:  16,
		CacheSize:  10,
	}, nil)

	if p.Available() {
		t.Fatal("Available = true for a missing model")
	}
	vec, err := p.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed in fallback mode: %v", err)
	}
	if len(vec) != 32 {
		t.Errorf("dimension = %d, want 32", len(vec))
	}
	if p.Dimensions() != 32 {
		t.Errorf("Dimensions = %d, want 32", p.Dimensions())
	}
}

func TestStaticProvider_ReportsSemanticFlag(t *testing.T) {
	p := NewStaticProvider(NewMockEmbedder(8), true)
	if !p.Available() {
		t.Error("static provider with semantic=true reports unavailable")
	}
	vec, err := p.Embed(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 8 {
		t.Errorf("dimension = %d, want 8", len(vec))
	}

	lex := NewStaticProvider(NewLexicalEmbedder(8), false)
	if lex.Available() {
		t.Error("static provider with semantic=false reports available")
	}
}
