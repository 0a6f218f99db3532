package intent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/wakaru/internal/embedding"
	"github.com/hyperjump/wakaru/internal/models"
	"github.com/hyperjump/wakaru/internal/vector"
	"github.com/hyperjump/wakaru/pkg/utils"
)

// Classifier assigns a query to the closest intent in the catalog. With the
// semantic model available it compares the query embedding against per-intent
// centroids (mean of example embeddings, re-normalized); without it, it falls
// back to token overlap against the example phrases, which keeps exact
// example wordings at confidence 1.0.
type Classifier struct {
	defs         []Definition
	centroids    [][]float32
	unknownFloor float64
	logger       *zap.Logger
}

// NewClassifier builds a classifier for the catalog. Centroids are computed
// up front when the provider's semantic model is available; otherwise the
// classifier runs in token-overlap mode.
func NewClassifier(ctx context.Context, provider *embedding.Provider, defs []Definition, unknownFloor float64, logger *zap.Logger) (*Classifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Classifier{
		defs:         defs,
		unknownFloor: unknownFloor,
		logger:       logger,
	}
	if !provider.Available() {
		logger.Info("intent classifier using token-overlap mode",
			zap.Int("intents", len(defs)))
		return c, nil
	}

	c.centroids = make([][]float32, len(defs))
	for i, def := range defs {
		if len(def.Examples) == 0 {
			return nil, fmt.Errorf("intent %q has no examples", def.Name)
		}
		vecs, err := provider.EmbedBatch(ctx, def.Examples)
		if err != nil {
			return nil, fmt.Errorf("embed examples for intent %q: %w", def.Name, err)
		}
		c.centroids[i] = centroid(vecs)
	}
	logger.Info("intent classifier centroids built",
		zap.Int("intents", len(defs)))
	return c, nil
}

// Classify returns the best-matching intent name and its confidence in [0,1].
// vec is the query embedding; pass nil in token-overlap mode. When the best
// confidence is below the unknown floor the intent is reported as unknown,
// with the confidence kept so callers can still see how close the miss was.
func (c *Classifier) Classify(ctx context.Context, text string, vec []float32) (string, float64) {
	name, confidence := c.best(text, vec)
	if confidence < c.unknownFloor {
		return models.IntentUnknown, confidence
	}
	return name, confidence
}

func (c *Classifier) best(text string, vec []float32) (string, float64) {
	if len(c.defs) == 0 {
		return models.IntentUnknown, 0
	}
	bestName := c.defs[0].Name
	bestScore := -1.0
	if c.centroids != nil && vec != nil {
		for i, def := range c.defs {
			score := vector.CosineSimilarity(vec, c.centroids[i])
			if score > bestScore {
				bestName = def.Name
				bestScore = score
			}
		}
		return bestName, bestScore
	}
	queryTokens := utils.TokenSet(text)
	for _, def := range c.defs {
		for _, example := range def.Examples {
			score := jaccard(queryTokens, utils.TokenSet(example))
			if score > bestScore {
				bestName = def.Name
				bestScore = score
			}
		}
	}
	if bestScore < 0 {
		bestScore = 0
	}
	return bestName, bestScore
}

// centroid returns the re-normalized mean of unit vectors.
func centroid(vecs [][]float32) []float32 {
	out := make([]float32, len(vecs[0]))
	for _, v := range vecs {
		for i, x := range v {
			out[i] += x
		}
	}
	n := float32(len(vecs))
	for i := range out {
		out[i] /= n
	}
	utils.NormalizeL2(out)
	return out
}

// jaccard is |a∩b| / |a∪b| over token sets; both empty scores 0.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
