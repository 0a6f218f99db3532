package embedding

import (
	"context"
	"math"
	"testing"
)

func TestLexicalEmbedder_Deterministic(t *testing.T) {
	e := NewLexicalEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "The refund policy is 30 days.")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, err := e.Embed(ctx, "The refund policy is 30 days.")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("identical text produced different vectors at %d", i)
		}
	}
}

func TestLexicalEmbedder_UnitNorm(t *testing.T) {
	e := NewLexicalEmbedder(64)
	vec, err := e.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(sum)-1.0) > 1e-5 {
		t.Errorf("norm = %f, want 1.0", math.Sqrt(sum))
	}
}

func TestLexicalEmbedder_EmptyTextZeroVector(t *testing.T) {
	e := NewLexicalEmbedder(16)
	vec, err := e.Embed(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for i, v := range vec {
		if v != 0 {
			t.Fatalf("empty text vector nonzero at %d: %f", i, v)
		}
	}
}

func TestLexicalEmbedder_OverlapScoresHigherThanDisjoint(t *testing.T) {
	e := NewLexicalEmbedder(128)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "refund policy days")
	same, _ := e.Embed(ctx, "the refund policy is 30 days")
	other, _ := e.Embed(ctx, "weather forecast tomorrow sunny")

	if dot(q, same) <= dot(q, other) {
		t.Errorf("overlapping text similarity %f not above disjoint %f", dot(q, same), dot(q, other))
	}
}

func TestLexicalEmbedder_EmbedBatch(t *testing.T) {
	e := NewLexicalEmbedder(32)
	vecs, err := e.EmbedBatch(context.Background(), []string{"one", "two", "three"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vecs))
	}
	for i, v := range vecs {
		if len(v) != 32 {
			t.Errorf("vector %d has dimension %d, want 32", i, len(v))
		}
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
