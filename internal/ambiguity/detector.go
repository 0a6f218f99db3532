// Package ambiguity decides whether a query is clear enough to answer
// directly. Hard lexical heuristics force the ambiguous verdict on their own;
// otherwise the classifier's confidence against the tunable threshold decides.
package ambiguity

import (
	"strings"

	"github.com/hyperjump/wakaru/pkg/utils"
)

// Reason tags recorded per fired heuristic.
const (
	ReasonEmptyQuery         = "empty_query"
	ReasonVagueReference     = "vague_reference"
	ReasonTooShort           = "too_short"
	ReasonMultipleQuestions  = "multiple_questions"
	ReasonIncompleteQuestion = "incomplete_question"
	ReasonLowConfidence      = "low_confidence"
)

// vagueReferences are queries that are nothing but an unresolved pronoun.
var vagueReferences = map[string]struct{}{
	"it": {}, "that": {}, "this": {}, "thing": {}, "something": {},
}

// incompletePrefixes mark interrogative fragments with no object.
var incompletePrefixes = []string{"what about", "how about"}

const minTokens = 3

// Detector applies the ambiguity heuristics with a configured confidence threshold.
type Detector struct {
	threshold float64
}

// NewDetector creates a detector. Queries with classifier confidence below
// threshold are ambiguous even when no hard heuristic fires.
func NewDetector(threshold float64) *Detector {
	return &Detector{threshold: threshold}
}

// Verdict is the outcome of ambiguity detection.
type Verdict struct {
	Ambiguous bool
	// Reasons lists fired heuristics in evaluation order.
	Reasons []string
}

// Detect evaluates query against all heuristics and the confidence threshold.
// An empty query short-circuits: no other heuristic can say anything useful
// about no text at all.
func (d *Detector) Detect(query string, confidence float64) *Verdict {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return &Verdict{Ambiguous: true, Reasons: []string{ReasonEmptyQuery}}
	}

	var reasons []string
	lower := strings.ToLower(trimmed)

	if _, ok := vagueReferences[strings.TrimRight(lower, "?!. ")]; ok {
		reasons = append(reasons, ReasonVagueReference)
	}
	if len(utils.Tokens(trimmed)) < minTokens {
		reasons = append(reasons, ReasonTooShort)
	}
	if strings.Count(trimmed, "?") > 1 {
		reasons = append(reasons, ReasonMultipleQuestions)
	}
	if isIncompleteQuestion(lower) {
		reasons = append(reasons, ReasonIncompleteQuestion)
	}

	ambiguous := len(reasons) > 0
	if confidence < d.threshold {
		reasons = append(reasons, ReasonLowConfidence)
		ambiguous = true
	}
	return &Verdict{Ambiguous: ambiguous, Reasons: reasons}
}

// Threshold returns the configured confidence threshold.
func (d *Detector) Threshold() float64 {
	return d.threshold
}

// isIncompleteQuestion reports whether lower is a bare "what about" / "how
// about" fragment with no further content.
func isIncompleteQuestion(lower string) bool {
	for _, prefix := range incompletePrefixes {
		if !strings.HasPrefix(lower, prefix) {
			continue
		}
		rest := strings.TrimRight(strings.TrimSpace(lower[len(prefix):]), "?!. ")
		if rest == "" {
			return true
		}
	}
	return false
}
