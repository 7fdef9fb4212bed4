package summarize

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"stash/internal/core"
)

const itemDigestPromptTemplate = `You are a reading assistant. Digest the saved content below.

Respond with ONLY a JSON object, no prose before or after, in exactly this shape:
{
  "title": "a clear, specific title (max 80 chars)",
  "summary": "2-4 sentences capturing the core argument or news",
  "key_points": ["3-5 short bullet points"],
  "question": "one thought-provoking question the content raises"
}

Content title: %s
Content URL: %s

Content:
---
%s
---`

const groupSynthesisPromptTemplate = `You are a reading assistant. The user saved %d related pieces about %s. Their individual digests are below. Synthesize them into ONE combined digest that connects the pieces rather than repeating each one.

Respond with ONLY a JSON object, no prose before or after, in exactly this shape:
{
  "title": "a title covering the combined theme (max 80 chars)",
  "summary": "3-5 sentences connecting the pieces",
  "key_points": ["4-6 short bullet points across all pieces"],
  "question": "one thought-provoking question spanning the theme"
}

Digests:
%s`

const directGroupPromptTemplate = `You are a reading assistant. The user saved %d related pieces about %s. Their raw content is below. Produce ONE combined digest that connects the pieces rather than summarizing each in isolation.

Respond with ONLY a JSON object, no prose before or after, in exactly this shape:
{
  "title": "a title covering the combined theme (max 80 chars)",
  "summary": "3-5 sentences connecting the pieces",
  "key_points": ["4-6 short bullet points across all pieces"],
  "question": "one thought-provoking question spanning the theme"
}

Content:
%s`

// buildItemPrompt renders the single-item digest prompt. Long bodies are
// truncated so a pathological page cannot blow the context window.
func buildItemPrompt(item *core.ContentItem, maxBodyChars int) string {
	body := item.RawBody
	if body == "" {
		body = item.RawDescription
	}
	body = truncate(body, maxBodyChars)
	title := item.RawTitle
	if title == "" {
		title = "(untitled)"
	}
	return fmt.Sprintf(itemDigestPromptTemplate, title, item.SourceURL, body)
}

// truncate cuts s to at most max bytes without splitting a UTF-8 rune.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// buildSynthesisPrompt renders the group synthesis prompt. Summaries must
// already be in a stable order so the prompt, and therefore the cache key
// semantics, are deterministic.
func buildSynthesisPrompt(category string, summaries []core.ItemSummary) string {
	var b strings.Builder
	for i, s := range summaries {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s.Title)
		fmt.Fprintf(&b, "   %s\n", s.Summary)
		for _, kp := range s.KeyPoints {
			fmt.Fprintf(&b, "   - %s\n", kp)
		}
	}
	return fmt.Sprintf(groupSynthesisPromptTemplate, len(summaries), category, b.String())
}

// buildDirectGroupPrompt renders the direct strategy's prompt from raw
// member content. The per-item budget shrinks with group size so the whole
// prompt stays bounded.
func buildDirectGroupPrompt(category string, items []*core.ContentItem, maxBodyChars int) string {
	perItem := maxBodyChars
	if perItem > 0 && len(items) > 1 {
		perItem = maxBodyChars / len(items)
	}

	var b strings.Builder
	for i, item := range items {
		title := item.RawTitle
		if title == "" {
			title = item.SourceURL
		}
		body := item.RawBody
		if body == "" {
			body = item.RawDescription
		}
		fmt.Fprintf(&b, "%d. %s (%s)\n%s\n\n", i+1, title, item.SourceURL, truncate(body, perItem))
	}
	return fmt.Sprintf(directGroupPromptTemplate, len(items), category, b.String())
}
