// Package classify assigns categories to content items and clusters
// same-owner batches into processing groups. Everything here is
// deterministic and free: no AI calls on this path.
package classify

import (
	"strings"

	"stash/internal/core"
)

// DefaultCategory is assigned when no keyword matches.
const DefaultCategory = "other"

// Taxonomy is the injected category table. Categories is ordered; the order
// is the tie-break when two categories score equally. Built once at startup
// and treated as immutable.
type Taxonomy struct {
	categories []string
	keywords   map[string][]string
}

// NewTaxonomy builds a Taxonomy from an ordered category list and a
// category -> keyword-list table. Keywords are lowercased on construction.
func NewTaxonomy(categories []string, keywords map[string][]string) *Taxonomy {
	lowered := make(map[string][]string, len(keywords))
	for cat, words := range keywords {
		out := make([]string, len(words))
		for i, w := range words {
			out[i] = strings.ToLower(w)
		}
		lowered[cat] = out
	}
	return &Taxonomy{
		categories: append([]string(nil), categories...),
		keywords:   lowered,
	}
}

// Categories returns the declaration-ordered category names.
func (t *Taxonomy) Categories() []string {
	return t.categories
}

// Classify returns the category for an item. An explicit category on the
// item always wins; otherwise each candidate category is scored by counting
// keyword hits across title, summary, description, and key points, with
// ties broken by declaration order. Zero hits classifies as DefaultCategory.
func (t *Taxonomy) Classify(item *core.ContentItem) string {
	if item.Category != "" {
		return item.Category
	}

	haystack := strings.ToLower(strings.Join([]string{
		item.RawTitle,
		item.Summary,
		item.RawDescription,
		strings.Join(item.KeyPoints, " "),
	}, " "))

	best := DefaultCategory
	bestScore := 0
	for _, cat := range t.categories {
		score := 0
		for _, kw := range t.keywords[cat] {
			score += strings.Count(haystack, kw)
		}
		// Strict > keeps the first-declared category on ties.
		if score > bestScore {
			best = cat
			bestScore = score
		}
	}

	return best
}
