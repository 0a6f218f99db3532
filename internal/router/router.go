// Package router orchestrates query analysis: embed once, classify, run
// ambiguity detection, then either retrieve supporting knowledge or return a
// clarifying-question directive. The router holds no per-query state; all
// persistence lives in the knowledge store.
package router

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/wakaru/internal/ambiguity"
	"github.com/hyperjump/wakaru/internal/config"
	"github.com/hyperjump/wakaru/internal/embedding"
	"github.com/hyperjump/wakaru/internal/intent"
	"github.com/hyperjump/wakaru/internal/knowledge"
	"github.com/hyperjump/wakaru/internal/models"
	"github.com/hyperjump/wakaru/pkg/utils"
)

// Router is the single entry point for query analysis.
type Router struct {
	provider   *embedding.Provider
	classifier *intent.Classifier
	detector   *ambiguity.Detector
	store      *knowledge.Store
	cfg        config.RoutingConfig
	logger     *zap.Logger
}

// New creates a router over the given components.
func New(
	provider *embedding.Provider,
	classifier *intent.Classifier,
	detector *ambiguity.Detector,
	store *knowledge.Store,
	cfg config.RoutingConfig,
	logger *zap.Logger,
) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		provider:   provider,
		classifier: classifier,
		detector:   detector,
		store:      store,
		cfg:        cfg,
		logger:     logger,
	}
}

// Analyze runs the full pipeline for one query. The text is embedded exactly
// once and the vector is shared between classification and retrieval.
// Ambiguous queries short-circuit: no retrieval happens and the caller gets a
// clarifying question instead.
func (r *Router) Analyze(ctx context.Context, req *models.AnalyzeRequest) (*models.QueryAnalysis, error) {
	trimmed := strings.TrimSpace(req.Query)

	var vec []float32
	if trimmed != "" && r.provider.Available() {
		v, err := r.provider.Embed(ctx, req.Query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		vec = v
	}

	intentName, confidence := r.classifier.Classify(ctx, req.Query, vec)
	if trimmed == "" {
		confidence = 0
	}
	verdict := r.detector.Detect(req.Query, confidence)

	analysis := &models.QueryAnalysis{
		Query:              req.Query,
		Intent:             intentName,
		Confidence:         utils.Round3(confidence),
		IsAmbiguous:        verdict.Ambiguous,
		NeedsClarification: verdict.Ambiguous,
		AmbiguityReasons:   verdict.Reasons,
	}
	if analysis.AmbiguityReasons == nil {
		analysis.AmbiguityReasons = []string{}
	}

	if verdict.Ambiguous {
		analysis.ClarifyingQuestion = ambiguity.ClarifyingQuestion(req.Query, intentName, verdict.Reasons)
		r.logger.Debug("query routed to clarification",
			zap.String("intent", intentName),
			zap.Float64("confidence", analysis.Confidence),
			zap.Strings("reasons", verdict.Reasons))
		return analysis, nil
	}

	if req.Augment {
		topK := req.TopK
		if topK <= 0 {
			topK = r.cfg.DefaultTopK
		}
		if topK > r.cfg.MaxTopK {
			topK = r.cfg.MaxTopK
		}
		minSim := models.NormalizeMinSimilarity(req.MinSimilarity, r.cfg.DefaultMinSimilarity)

		var (
			matches []*models.Match
			err     error
		)
		if vec != nil {
			matches, err = r.store.QueryVector(ctx, vec, topK, minSim)
		} else {
			matches, err = r.store.Query(ctx, req.Query, topK, minSim)
		}
		if err != nil {
			return nil, fmt.Errorf("retrieve knowledge: %w", err)
		}
		analysis.Results = matches
	}

	r.logger.Debug("query routed to retrieval",
		zap.String("intent", intentName),
		zap.Float64("confidence", analysis.Confidence),
		zap.Int("results", len(analysis.Results)))
	return analysis, nil
}

// FormatContext renders retrieved matches as a prompt block for the language
// model. Empty input yields an empty string.
func FormatContext(matches []*models.Match) string {
	if len(matches) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("KNOWLEDGE BASE (Retrieved Information):\n\n")
	for _, m := range matches {
		fmt.Fprintf(&b, "[Knowledge #%d] %s\n", m.Rank, m.Title)
		fmt.Fprintf(&b, "Content: %s\n", m.Content)
		fmt.Fprintf(&b, "Source: %s\n", m.Source)
		fmt.Fprintf(&b, "Relevance: %.2f%%\n\n", m.Similarity*100)
	}
	return b.String()
}
