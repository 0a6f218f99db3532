package ambiguity

import (
	"fmt"

	"github.com/hyperjump/wakaru/internal/models"
)

// intentQuestions are per-intent clarification templates used when no hard
// heuristic gives a more specific prompt.
var intentQuestions = map[string]string{
	"search":      "I can help you search! What specifically would you like me to look for?",
	"reminder":    "I can set a reminder for you. What should I remind you about, and when?",
	"calculation": "I can help with calculations. What would you like me to compute?",
	"weather":     "I can check the weather. For which location and what timeframe?",
}

const genericQuestion = "I want to help, but I need a bit more information. Can you clarify what you mean?"

// ClarifyingQuestion produces the clarification prompt for an ambiguous
// query. Hard heuristic reasons take priority over intent templates: they
// name a concrete defect in the text, which beats a best-guess intent.
func ClarifyingQuestion(query, intent string, reasons []string) string {
	for _, reason := range reasons {
		switch reason {
		case ReasonEmptyQuery:
			return "I didn't catch that. Could you please tell me what you'd like to know?"
		case ReasonVagueReference:
			return "I'm not sure what you're referring to. Could you be more specific?"
		case ReasonTooShort:
			return fmt.Sprintf("I see you mentioned %q. Can you provide more details about what you'd like to know?", query)
		case ReasonMultipleQuestions:
			return "I noticed you have several questions. Which one would you like me to address first?"
		case ReasonIncompleteQuestion:
			return "I think you're asking about something, but I'm not quite sure. Could you rephrase your question?"
		}
	}
	if q, ok := intentQuestions[intent]; ok {
		return q
	}
	if intent == models.IntentUnknown {
		return "Could you be more specific?"
	}
	return genericQuestion
}
