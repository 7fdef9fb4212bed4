package classify

import (
	"math"
	"net/url"
	"strings"

	"stash/internal/core"
)

// Similarity weights. Category dominates because grouping itself is by
// exact category; domain and title overlap refine ordering within that.
const (
	categoryWeight = 40
	domainWeight   = 30
	titleWeight    = 30
)

// Similarity scores how related two items are on a 0-100 scale: a category
// match contributes 40, a shared source domain 30, and token overlap of
// normalized title words (intersection over union, words of three characters
// or fewer excluded) up to 30, rounded. Used only for reporting and ordering
// hints; actual grouping is by exact category.
func Similarity(a, b *core.ContentItem) int {
	score := 0

	if a.Category != "" && a.Category == b.Category {
		score += categoryWeight
	}

	if da, db := sourceDomain(a.SourceURL), sourceDomain(b.SourceURL); da != "" && da == db {
		score += domainWeight
	}

	score += int(math.Round(titleOverlap(a.RawTitle, b.RawTitle) * titleWeight))

	return score
}

// titleOverlap returns the Jaccard coefficient of the two titles' word sets.
func titleOverlap(a, b string) float64 {
	wa := titleWords(a)
	wb := titleWords(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}

	intersection := 0
	for w := range wa {
		if wb[w] {
			intersection++
		}
	}
	union := len(wa) + len(wb) - intersection

	return float64(intersection) / float64(union)
}

func titleWords(title string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(title)) {
		w = strings.Trim(w, ".,:;!?\"'()[]")
		if len(w) > 3 {
			words[w] = true
		}
	}
	return words
}

func sourceDomain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}
