package classify

import (
	"sort"

	"stash/internal/core"
)

// Batch is one unit of processing work: either a group of 2+ same-category
// items or a singleton processed individually.
type Batch struct {
	Category string
	Items    []*core.ContentItem
}

// Singleton reports whether this batch is processed as an individual item
// rather than a group.
func (b Batch) Singleton() bool {
	return len(b.Items) == 1
}

// Group partitions items by classified category and splits each partition
// into chunks of at most batchLimit items. Partitions of size 1 yield
// singletons. The returned order is a processing hint only: largest
// partitions first, ties broken by average pairwise similarity descending.
// Given the same input in the same order, the output is identical.
func (t *Taxonomy) Group(items []*core.ContentItem, batchLimit int) []Batch {
	if batchLimit < 2 {
		// Grouping disabled: everything is a singleton.
		batches := make([]Batch, 0, len(items))
		for _, item := range items {
			batches = append(batches, Batch{Category: t.Classify(item), Items: []*core.ContentItem{item}})
		}
		return batches
	}

	partitions := make(map[string][]*core.ContentItem)
	var order []string // category first-seen order, for deterministic output
	for _, item := range items {
		cat := t.Classify(item)
		if _, ok := partitions[cat]; !ok {
			order = append(order, cat)
		}
		partitions[cat] = append(partitions[cat], item)
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := partitions[order[i]], partitions[order[j]]
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return avgPairwiseSimilarity(a) > avgPairwiseSimilarity(b)
	})

	var batches []Batch
	for _, cat := range order {
		members := partitions[cat]
		for start := 0; start < len(members); start += batchLimit {
			end := start + batchLimit
			if end > len(members) {
				end = len(members)
			}
			batches = append(batches, Batch{Category: cat, Items: members[start:end]})
		}
	}

	return batches
}

// avgPairwiseSimilarity reports group cohesion as the mean Similarity over
// all member pairs. Singletons score 0.
func avgPairwiseSimilarity(items []*core.ContentItem) float64 {
	if len(items) < 2 {
		return 0
	}

	total := 0
	pairs := 0
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			total += Similarity(items[i], items[j])
			pairs++
		}
	}

	return float64(total) / float64(pairs)
}
