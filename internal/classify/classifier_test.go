package classify

import (
	"reflect"
	"testing"

	"stash/internal/core"
)

func testTaxonomy() *Taxonomy {
	return NewTaxonomy(
		[]string{"technology", "science", "other"},
		map[string][]string{
			"technology": {"software", "cloud", "api"},
			"science":    {"research", "physics", "study"},
		},
	)
}

func TestClassifyExplicitCategoryWins(t *testing.T) {
	tax := testTaxonomy()
	item := &core.ContentItem{
		Category: "cooking",
		RawTitle: "Software research in the cloud", // would otherwise match
	}

	if got := tax.Classify(item); got != "cooking" {
		t.Errorf("expected explicit category to win, got %q", got)
	}
}

func TestClassifyKeywordScoring(t *testing.T) {
	tax := testTaxonomy()

	tests := []struct {
		name string
		item *core.ContentItem
		want string
	}{
		{
			name: "title keywords",
			item: &core.ContentItem{RawTitle: "New cloud API for software teams"},
			want: "technology",
		},
		{
			name: "description keywords",
			item: &core.ContentItem{RawDescription: "A physics research study"},
			want: "science",
		},
		{
			name: "key points contribute",
			item: &core.ContentItem{KeyPoints: []string{"research methodology", "study design"}},
			want: "science",
		},
		{
			name: "no matches falls back to other",
			item: &core.ContentItem{RawTitle: "Weekend gardening notes"},
			want: "other",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tax.Classify(tt.item); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyTieBreaksByDeclarationOrder(t *testing.T) {
	tax := testTaxonomy()
	// One hit for each of technology and science.
	item := &core.ContentItem{RawTitle: "Software research"}

	if got := tax.Classify(item); got != "technology" {
		t.Errorf("expected first-declared category on tie, got %q", got)
	}
}

func TestSimilarityComponents(t *testing.T) {
	a := &core.ContentItem{
		Category:  "technology",
		SourceURL: "https://example.com/posts/1",
		RawTitle:  "Scaling distributed databases",
	}
	b := &core.ContentItem{
		Category:  "technology",
		SourceURL: "https://www.example.com/posts/2",
		RawTitle:  "Scaling distributed caches",
	}

	score := Similarity(a, b)
	// 40 (category) + 30 (domain, www stripped) + round(2/4 * 30) = 85.
	if score != 85 {
		t.Errorf("Similarity() = %d, want 85", score)
	}
}

func TestSimilarityNoOverlap(t *testing.T) {
	a := &core.ContentItem{Category: "science", SourceURL: "https://a.org/x", RawTitle: "Quantum entanglement explained"}
	b := &core.ContentItem{Category: "culture", SourceURL: "https://b.net/y", RawTitle: "Best jazz albums ranked"}

	if score := Similarity(a, b); score != 0 {
		t.Errorf("Similarity() = %d, want 0", score)
	}
}

func TestSimilarityIgnoresShortWords(t *testing.T) {
	a := &core.ContentItem{RawTitle: "The art of war"}
	b := &core.ContentItem{RawTitle: "The way of zen"}

	// Every shared word is <= 3 characters, so title overlap contributes 0.
	if score := Similarity(a, b); score != 0 {
		t.Errorf("Similarity() = %d, want 0", score)
	}
}

func TestGroupPartitionsByCategory(t *testing.T) {
	tax := testTaxonomy()
	items := []*core.ContentItem{
		{ID: "1", RawTitle: "cloud software release"},
		{ID: "2", RawTitle: "api design software"},
		{ID: "3", RawTitle: "physics research update"},
	}

	batches := tax.Group(items, 10)
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}

	// Largest partition first.
	if batches[0].Category != "technology" || len(batches[0].Items) != 2 {
		t.Errorf("unexpected first batch: %q with %d items", batches[0].Category, len(batches[0].Items))
	}
	if !batches[1].Singleton() {
		t.Error("expected science partition of one to be a singleton")
	}
}

func TestGroupRespectsBatchLimit(t *testing.T) {
	tax := testTaxonomy()
	var items []*core.ContentItem
	for i := 0; i < 7; i++ {
		items = append(items, &core.ContentItem{ID: string(rune('a' + i)), RawTitle: "software"})
	}

	batches := tax.Group(items, 3)
	if len(batches) != 3 {
		t.Fatalf("expected 3 chunks for 7 items with limit 3, got %d", len(batches))
	}
	sizes := []int{len(batches[0].Items), len(batches[1].Items), len(batches[2].Items)}
	if !reflect.DeepEqual(sizes, []int{3, 3, 1}) {
		t.Errorf("unexpected chunk sizes: %v", sizes)
	}
}

func TestGroupDeterministic(t *testing.T) {
	tax := testTaxonomy()
	items := []*core.ContentItem{
		{ID: "1", RawTitle: "cloud software"},
		{ID: "2", RawTitle: "physics study"},
		{ID: "3", RawTitle: "api software"},
		{ID: "4", RawTitle: "research physics"},
		{ID: "5", RawTitle: "gardening"},
	}

	first := tax.Group(items, 10)
	second := tax.Group(items, 10)

	if len(first) != len(second) {
		t.Fatalf("batch counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Category != second[i].Category {
			t.Errorf("batch %d category differs: %q vs %q", i, first[i].Category, second[i].Category)
		}
		for j := range first[i].Items {
			if first[i].Items[j].ID != second[i].Items[j].ID {
				t.Errorf("batch %d item %d differs", i, j)
			}
		}
	}
}

func TestGroupWithLowLimitYieldsSingletons(t *testing.T) {
	tax := testTaxonomy()
	items := []*core.ContentItem{
		{ID: "1", RawTitle: "cloud software"},
		{ID: "2", RawTitle: "api software"},
	}

	batches := tax.Group(items, 1)
	if len(batches) != 2 {
		t.Fatalf("expected 2 singletons, got %d batches", len(batches))
	}
	for _, b := range batches {
		if !b.Singleton() {
			t.Error("expected singleton batch when grouping is disabled")
		}
	}
}
