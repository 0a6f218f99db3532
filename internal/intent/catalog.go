// Package intent classifies queries against a small catalog of named intents.
package intent

// Definition is a named intent with representative example phrases. The
// classifier derives a centroid vector from the examples at build time.
type Definition struct {
	Name     string   `yaml:"name" json:"name"`
	Examples []string `yaml:"examples" json:"examples"`
}

// DefaultCatalog returns the built-in intent catalog. Deployments can replace
// it wholesale from configuration.
func DefaultCatalog() []Definition {
	return []Definition{
		{Name: "greeting", Examples: []string{
			"hello", "hi", "hey", "good morning", "good afternoon", "good evening",
			"what's up", "how are you", "greetings",
		}},
		{Name: "time-query", Examples: []string{
			"what time is it", "current time", "what's the time", "time now",
			"tell me the time", "clock",
		}},
		{Name: "date-query", Examples: []string{
			"what date is it", "what's today's date", "current date", "today's date",
			"what day is it", "date today",
		}},
		{Name: "search", Examples: []string{
			"search for", "look up", "find information about", "google",
			"search the web", "look for",
		}},
		{Name: "calculation", Examples: []string{
			"calculate", "compute", "what is", "plus", "minus", "times", "divided by",
			"math problem", "solve",
		}},
		{Name: "weather", Examples: []string{
			"weather", "temperature", "forecast", "rain", "sunny", "cloudy",
			"hot", "cold", "climate",
		}},
		{Name: "reminder", Examples: []string{
			"remind me", "set reminder", "don't forget", "remember to",
			"create reminder", "schedule reminder",
		}},
		{Name: "note", Examples: []string{
			"take note", "write down", "remember this", "save this",
			"create note", "add note",
		}},
		{Name: "help", Examples: []string{
			"help", "how do i", "how to", "can you help", "assist me",
			"what can you do", "capabilities", "features",
		}},
	}
}
