package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"stash/internal/core"
)

// mockGenerator returns scripted responses in order, then repeats the last.
type mockGenerator struct {
	responses []string
	errs      []error
	calls     int
}

func (m *mockGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	idx := m.calls
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	m.calls++
	var err error
	if idx < len(m.errs) {
		err = m.errs[idx]
	}
	return m.responses[idx], err
}

const validDigestJSON = `{
	"title": "Go Generics in Practice",
	"summary": "A walkthrough of real generic code.",
	"key_points": ["type parameters", "constraints", "when not to use them"],
	"question": "Where do generics hurt readability?"
}`

func sampleItem() *core.ContentItem {
	return &core.ContentItem{
		ID:        "i1",
		OwnerID:   "u1",
		SourceURL: "https://example.com/generics",
		RawTitle:  "Generics post",
		RawBody:   "Long article body about generics.",
	}
}

func TestDigestItemParsesStrictJSON(t *testing.T) {
	gen := &mockGenerator{responses: []string{validDigestJSON}}
	s := New(gen, DefaultOptions())

	digest, err := s.DigestItem(context.Background(), sampleItem())
	if err != nil {
		t.Fatalf("DigestItem failed: %v", err)
	}
	if digest.Title != "Go Generics in Practice" || len(digest.KeyPoints) != 3 {
		t.Errorf("unexpected digest: %+v", digest)
	}
	if digest.Fallback {
		t.Error("successful digest must not be marked fallback")
	}
}

func TestDigestItemStripsCodeFences(t *testing.T) {
	gen := &mockGenerator{responses: []string{"```json\n" + validDigestJSON + "\n```"}}
	s := New(gen, DefaultOptions())

	digest, err := s.DigestItem(context.Background(), sampleItem())
	if err != nil {
		t.Fatalf("DigestItem failed on fenced response: %v", err)
	}
	if digest.Summary == "" {
		t.Error("expected parsed summary")
	}
}

func TestDigestItemRetriesThenSucceeds(t *testing.T) {
	gen := &mockGenerator{
		responses: []string{"not json at all", validDigestJSON},
	}
	opts := DefaultOptions()
	opts.RetryDelay = 0
	s := New(gen, opts)

	digest, err := s.DigestItem(context.Background(), sampleItem())
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if gen.calls != 2 {
		t.Errorf("expected 2 calls, got %d", gen.calls)
	}
	if digest.Title == "" {
		t.Error("expected digest from second attempt")
	}
}

func TestDigestItemMalformedAfterRetries(t *testing.T) {
	gen := &mockGenerator{responses: []string{`{"title": ""}`}}
	opts := DefaultOptions()
	opts.RetryDelay = 0
	s := New(gen, opts)

	_, err := s.DigestItem(context.Background(), sampleItem())
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestDigestItemUnavailable(t *testing.T) {
	gen := &mockGenerator{
		responses: []string{""},
		errs:      []error{errors.New("connection refused")},
	}
	opts := DefaultOptions()
	opts.RetryDelay = 0
	s := New(gen, opts)

	_, err := s.DigestItem(context.Background(), sampleItem())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestFallbackDigestKeepsOriginalTitle(t *testing.T) {
	item := sampleItem()
	digest := FallbackDigest(item)

	if digest.Title != "Generics post" {
		t.Errorf("fallback must keep the original title, got %q", digest.Title)
	}
	if !digest.Fallback {
		t.Error("fallback digest must be marked")
	}
	if digest.Summary == "" || len(digest.KeyPoints) == 0 {
		t.Errorf("fallback digest must be complete: %+v", digest)
	}
}

func TestSynthesizeGroupBuildsStablePrompt(t *testing.T) {
	var captured string
	gen := &promptCapturingGenerator{response: validDigestJSON, captured: &captured}
	s := New(gen, DefaultOptions())

	summaries := []core.ItemSummary{
		{ItemID: "a", Title: "First piece", Summary: "s1"},
		{ItemID: "b", Title: "Second piece", Summary: "s2"},
	}
	res, err := s.SynthesizeGroup(context.Background(), "technology", summaries)
	if err != nil {
		t.Fatalf("SynthesizeGroup failed: %v", err)
	}
	if res.Title == "" {
		t.Error("expected synthesis result")
	}
	if !strings.Contains(captured, "1. First piece") || !strings.Contains(captured, "2. Second piece") {
		t.Errorf("prompt must list digests in member order:\n%s", captured)
	}
	if !strings.Contains(captured, "technology") {
		t.Error("prompt must name the category")
	}
}

type promptCapturingGenerator struct {
	response string
	captured *string
}

func (g *promptCapturingGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	*g.captured = prompt
	return g.response, nil
}

func TestSummarizeGroupDirectUsesRawContent(t *testing.T) {
	var captured string
	gen := &promptCapturingGenerator{response: validDigestJSON, captured: &captured}
	s := New(gen, DefaultOptions())

	items := []*core.ContentItem{
		{ID: "a", SourceURL: "https://example.com/a", RawTitle: "First raw", RawBody: "alpha body"},
		{ID: "b", SourceURL: "https://example.com/b", RawTitle: "Second raw", RawBody: "beta body"},
	}
	res, err := s.SummarizeGroupDirect(context.Background(), "technology", items)
	if err != nil {
		t.Fatalf("SummarizeGroupDirect failed: %v", err)
	}
	if res.Title == "" || len(res.KeyPoints) == 0 {
		t.Errorf("unexpected result: %+v", res)
	}
	if !strings.Contains(captured, "alpha body") || !strings.Contains(captured, "beta body") {
		t.Errorf("prompt must carry raw member content:\n%s", captured)
	}
	if !strings.Contains(captured, "1. First raw") || !strings.Contains(captured, "2. Second raw") {
		t.Errorf("prompt must list members in order:\n%s", captured)
	}
}

func TestSummarizeGroupDirectUnavailable(t *testing.T) {
	gen := &mockGenerator{
		responses: []string{""},
		errs:      []error{errors.New("connection refused")},
	}
	opts := DefaultOptions()
	opts.RetryDelay = 0
	s := New(gen, opts)

	_, err := s.SummarizeGroupDirect(context.Background(), "technology", []*core.ContentItem{sampleItem()})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestItemPromptTruncatesOnRuneBoundary(t *testing.T) {
	var captured string
	gen := &promptCapturingGenerator{response: validDigestJSON, captured: &captured}
	opts := DefaultOptions()
	opts.MaxBodyChars = 10
	s := New(gen, opts)

	item := sampleItem()
	item.RawBody = strings.Repeat("é", 20)

	if _, err := s.DigestItem(context.Background(), item); err != nil {
		t.Fatalf("DigestItem failed: %v", err)
	}
	if !utf8.ValidString(captured) {
		t.Error("truncation produced invalid UTF-8 in the prompt")
	}
	if strings.Count(captured, "é") != 5 {
		t.Errorf("expected 5 whole runes after a 10-byte cut, got %d", strings.Count(captured, "é"))
	}
}

func TestFallbackSynthesisListsMembers(t *testing.T) {
	summaries := []core.ItemSummary{
		{ItemID: "a", Title: "First piece"},
		{ItemID: "b", Title: "Second piece"},
	}
	res := FallbackSynthesis("science", summaries)

	if len(res.KeyPoints) != 2 {
		t.Errorf("expected one key point per member, got %v", res.KeyPoints)
	}
	if !strings.Contains(res.Title, "science") {
		t.Errorf("fallback title should name the category: %q", res.Title)
	}
}
