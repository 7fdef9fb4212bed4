package core

import "time"

// SourceKind classifies where a captured item came from.
type SourceKind string

const (
	SourceLink   SourceKind = "link"
	SourceVideo  SourceKind = "video"
	SourceSocial SourceKind = "social"
	SourceOther  SourceKind = "other"
)

// Status is the user-facing lifecycle of a content item.
type Status string

const (
	StatusInbox     Status = "inbox"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

// ProcessingState is the pipeline-facing lifecycle of a content item.
// It only moves forward (scraped -> processing -> ready); the single
// allowed regression is an explicit re-dispatch of a stuck item.
type ProcessingState string

const (
	StateScraped    ProcessingState = "scraped"
	StateProcessing ProcessingState = "processing"
	StateReady      ProcessingState = "ready"
)

// ContentItem is the unit of capture and its derived processing fields.
type ContentItem struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`

	SourceURL      string     `json:"source_url"`
	SourceKind     SourceKind `json:"source_kind"`
	RawTitle       string     `json:"raw_title"`
	RawBody        string     `json:"raw_body"`
	RawDescription string     `json:"raw_description"`

	Category        string          `json:"category"` // user-supplied or classifier-derived
	Status          Status          `json:"status"`
	ProcessingState ProcessingState `json:"processing_state"`

	// Digest fields, populated when ProcessingState reaches ready.
	Title          string    `json:"title"`
	Summary        string    `json:"summary"`
	KeyPoints      []string  `json:"key_points"`
	Question       string    `json:"question"`
	SummarizedAt   time.Time `json:"summarized_at"`
	DigestFallback bool      `json:"digest_fallback"` // digest is canned, not AI output

	PriorityScore  float64   `json:"priority_score"`
	CreatedAt      time.Time `json:"created_at"`
	LastReviewedAt time.Time `json:"last_reviewed_at"`
	TimesReviewed  int       `json:"times_reviewed"`

	// Grouped-result fields, set only when this item is a synthesized group.
	// An item with IsGrouped=true is never merged into another group.
	IsGrouped           bool          `json:"is_grouped"`
	SourceItemIDs       []string      `json:"source_item_ids"`
	SourceURLs          []string      `json:"source_urls"`
	IndividualSummaries []ItemSummary `json:"individual_summaries"`
}

// ItemSummary carries one merged item's own digest inside a grouped item.
type ItemSummary struct {
	ItemID    string   `json:"item_id"`
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	SourceURL string   `json:"source_url"`
	Fallback  bool     `json:"fallback"` // true when the individual AI call degraded
}

// Group is an ephemeral cluster of 2+ same-category items awaiting combined
// synthesis. It exists only as ids and a category label until synthesis
// completes, at which point it becomes a new ContentItem with IsGrouped=true.
type Group struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Category  string    `json:"category"`
	MemberIDs []string  `json:"member_ids"`
	CreatedAt time.Time `json:"created_at"`
	Done      bool      `json:"done"`
}

// DedupRecord marks a content fingerprint as seen for one owner. Created
// once per fingerprint, never updated; retention expiry is the only
// destruction path.
type DedupRecord struct {
	OwnerID         string    `json:"owner_id"`
	Fingerprint     string    `json:"fingerprint"`
	SourceFeedID    string    `json:"source_feed_id"`
	URL             string    `json:"url"`
	ResultingItemID string    `json:"resulting_item_id"`
	FirstSeenAt     time.Time `json:"first_seen_at"`
}

// ItemDigest is the AI-produced digest for a single item.
type ItemDigest struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Question  string   `json:"question"`
	Fallback  bool     `json:"fallback"`
}

// SynthesisResult is the group-level digest produced by one synthesis call.
type SynthesisResult struct {
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	KeyPoints   []string  `json:"key_points"`
	Question    string    `json:"question"`
	GeneratedAt time.Time `json:"generated_at"`
}

// FeedEntry is one item discovered in an RSS/Atom feed, prior to capture.
type FeedEntry struct {
	FeedID      string    `json:"feed_id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description string    `json:"description"`
	GUID        string    `json:"guid"`
	Published   time.Time `json:"published"`
}

// ParseSourceKind maps a raw string to a SourceKind, defaulting to other.
func ParseSourceKind(s string) SourceKind {
	switch SourceKind(s) {
	case SourceLink, SourceVideo, SourceSocial:
		return SourceKind(s)
	default:
		return SourceOther
	}
}
