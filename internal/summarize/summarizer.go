// Package summarize turns captured content into structured digests via an
// AI model. Every path that can fail has a canned fallback so an item is
// never left without a digest.
package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"stash/internal/core"
	"stash/internal/llm"
	"stash/internal/logger"
)

var (
	// ErrMalformed means the model answered but not with the required JSON.
	ErrMalformed = errors.New("malformed model response")
	// ErrUnavailable means the model could not be reached at all.
	ErrUnavailable = errors.New("model unavailable")
)

// Options tune summarizer behavior.
type Options struct {
	MaxRetries   int
	RetryDelay   time.Duration
	MaxBodyChars int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries:   2,
		RetryDelay:   time.Second,
		MaxBodyChars: 24000,
	}
}

// Summarizer produces item digests and group syntheses.
type Summarizer struct {
	gen  llm.TextGenerator
	opts Options
}

// New creates a Summarizer.
func New(gen llm.TextGenerator, opts Options) *Summarizer {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Summarizer{gen: gen, opts: opts}
}

// digestPayload is the JSON shape the model is instructed to return.
type digestPayload struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Question  string   `json:"question"`
}

// DigestItem asks the model for a structured digest of one item. Returns
// ErrUnavailable or ErrMalformed (wrapped) when the model fails; callers
// are expected to degrade via FallbackDigest rather than leave the item
// stuck.
func (s *Summarizer) DigestItem(ctx context.Context, item *core.ContentItem) (*core.ItemDigest, error) {
	prompt := buildItemPrompt(item, s.opts.MaxBodyChars)
	payload, err := s.generateStructured(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("digest for item %s: %w", item.ID, err)
	}
	return &core.ItemDigest{
		Title:     payload.Title,
		Summary:   payload.Summary,
		KeyPoints: payload.KeyPoints,
		Question:  payload.Question,
	}, nil
}

// SynthesizeGroup combines per-item digests into one group digest. The
// summaries slice order must be stable (member id order).
func (s *Summarizer) SynthesizeGroup(ctx context.Context, category string, summaries []core.ItemSummary) (*core.SynthesisResult, error) {
	prompt := buildSynthesisPrompt(category, summaries)
	payload, err := s.generateStructured(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("synthesis for %d %s items: %w", len(summaries), category, err)
	}
	return &core.SynthesisResult{
		Title:     payload.Title,
		Summary:   payload.Summary,
		KeyPoints: payload.KeyPoints,
		Question:  payload.Question,
	}, nil
}

// SummarizeGroupDirect is the direct group strategy: one model call over
// the members' raw content, skipping per-item digests. SynthesizeGroup
// over pre-computed digests is the preferred path; this one trades digest
// quality for a single call when per-item output is not needed.
func (s *Summarizer) SummarizeGroupDirect(ctx context.Context, category string, items []*core.ContentItem) (*core.SynthesisResult, error) {
	prompt := buildDirectGroupPrompt(category, items, s.opts.MaxBodyChars)
	payload, err := s.generateStructured(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("direct synthesis for %d %s items: %w", len(items), category, err)
	}
	return &core.SynthesisResult{
		Title:     payload.Title,
		Summary:   payload.Summary,
		KeyPoints: payload.KeyPoints,
		Question:  payload.Question,
	}, nil
}

// generateStructured runs the prompt with retries and parses the strict
// JSON contract.
func (s *Summarizer) generateStructured(ctx context.Context, prompt string) (*digestPayload, error) {
	var lastErr error
	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		if attempt > 0 && s.opts.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-time.After(s.opts.RetryDelay):
			}
		}

		resp, err := s.gen.GenerateText(ctx, prompt)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", ErrUnavailable, err)
			logger.Warn("model call failed", "attempt", attempt+1, "error", err)
			continue
		}

		payload, err := parseDigestJSON(resp)
		if err != nil {
			lastErr = err
			logger.Warn("model returned malformed digest", "attempt", attempt+1, "error", err)
			continue
		}
		return payload, nil
	}
	return nil, lastErr
}

// parseDigestJSON validates the model's answer against the digest contract.
func parseDigestJSON(resp string) (*digestPayload, error) {
	cleaned := stripCodeFences(resp)

	var payload digestPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if payload.Title == "" || payload.Summary == "" {
		return nil, fmt.Errorf("%w: missing title or summary", ErrMalformed)
	}
	if len(payload.KeyPoints) == 0 {
		return nil, fmt.Errorf("%w: missing key points", ErrMalformed)
	}
	return &payload, nil
}

// stripCodeFences removes a markdown code fence the model sometimes wraps
// its JSON in despite instructions.
func stripCodeFences(resp string) string {
	cleaned := strings.TrimSpace(resp)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimSuffix(cleaned, "```")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
	}
	return strings.TrimSpace(cleaned)
}

// FallbackDigest is the canned digest used when the model fails. The item
// keeps its original title and becomes readable without AI output.
func FallbackDigest(item *core.ContentItem) *core.ItemDigest {
	title := item.RawTitle
	if title == "" {
		title = item.SourceURL
	}
	summary := item.RawDescription
	if summary == "" {
		summary = "Saved for later reading. An automatic summary was not available for this item."
	}
	return &core.ItemDigest{
		Title:     title,
		Summary:   summary,
		KeyPoints: []string{"Open the original source to read the full content."},
		Question:  "What made this worth saving?",
		Fallback:  true,
	}
}

// FallbackSynthesis is the canned group digest used when the synthesis
// call fails. It lists the member titles so the group is still useful.
func FallbackSynthesis(category string, summaries []core.ItemSummary) *core.SynthesisResult {
	points := make([]string, 0, len(summaries))
	for _, s := range summaries {
		points = append(points, s.Title)
	}
	return &core.SynthesisResult{
		Title:     fmt.Sprintf("%d saved items about %s", len(summaries), category),
		Summary:   fmt.Sprintf("A combined digest could not be generated. The group contains %d related items; their individual summaries are preserved below.", len(summaries)),
		KeyPoints: points,
		Question:  fmt.Sprintf("What connects these %s items?", category),
	}
}
