package config

// DefaultCategories is the built-in ordered category list. Order matters:
// the classifier breaks keyword-score ties by first-declared category.
// "other" is the fallback and carries no keywords.
var DefaultCategories = []string{
	"technology",
	"business",
	"science",
	"health",
	"finance",
	"culture",
	"other",
}

// DefaultKeywords is the built-in keyword table behind DefaultCategories.
// Matching is lowercase substring over title + summary + description + key
// points.
var DefaultKeywords = map[string][]string{
	"technology": {
		"software", "programming", "developer", "engineering", "cloud",
		"database", "kubernetes", "machine learning", "artificial intelligence",
		"llm", "api", "open source", "startup", "framework", "security",
	},
	"business": {
		"market", "strategy", "product", "revenue", "customer", "leadership",
		"management", "acquisition", "growth", "hiring", "saas",
	},
	"science": {
		"research", "study", "physics", "biology", "chemistry", "climate",
		"space", "experiment", "discovery", "astronomy", "quantum",
	},
	"health": {
		"health", "medical", "fitness", "nutrition", "sleep", "mental",
		"exercise", "disease", "therapy", "wellness",
	},
	"finance": {
		"investing", "stock", "crypto", "bitcoin", "economy", "inflation",
		"interest rate", "portfolio", "bank", "fund",
	},
	"culture": {
		"film", "music", "book", "art", "history", "travel", "food",
		"photography", "design", "game",
	},
}
