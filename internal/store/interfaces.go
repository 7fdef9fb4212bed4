// Package store defines the key-value persistence contract the pipeline
// depends on, plus a SQLite implementation and an in-memory one. The
// contract deliberately offers single-key writes only: the pipeline is
// designed to never need multi-key transactions.
package store

import (
	"context"
	"time"

	"stash/internal/core"
)

// Patch field names accepted by UpdateFields. Implementations reject
// anything else.
const (
	FieldStatus          = "status"
	FieldProcessingState = "processing_state"
	FieldCategory        = "category"
	FieldTitle           = "title"
	FieldSummary         = "summary"
	FieldKeyPoints       = "key_points"
	FieldQuestion        = "question"
	FieldSummarizedAt    = "summarized_at"
	FieldDigestFallback  = "digest_fallback"
	FieldPriorityScore   = "priority_score"
	FieldLastReviewedAt  = "last_reviewed_at"
	FieldTimesReviewed   = "times_reviewed"
)

// ItemStore is the content-item persistence contract. Lookups that find
// nothing return (nil, nil), not an error.
type ItemStore interface {
	Get(ctx context.Context, owner, id string) (*core.ContentItem, error)
	Put(ctx context.Context, item *core.ContentItem) error
	UpdateFields(ctx context.Context, owner, id string, patch map[string]any) error
	QueryByOwnerAndStatus(ctx context.Context, owner string, status core.Status) ([]*core.ContentItem, error)
	QueryByOwnerAndState(ctx context.Context, owner string, state core.ProcessingState) ([]*core.ContentItem, error)
}

// GroupStore persists the ephemeral processing-group records.
type GroupStore interface {
	PutGroup(ctx context.Context, group *core.Group) error
	GetGroup(ctx context.Context, id string) (*core.Group, error)
	QueryOpenGroups(ctx context.Context, owner string) ([]*core.Group, error)
	MarkGroupDone(ctx context.Context, id string) error
}

// DedupStore persists dedup ledger rows. PutDedupIfAbsent must be
// idempotent: a second write for the same (owner, fingerprint) is a no-op.
type DedupStore interface {
	GetDedup(ctx context.Context, owner, fingerprint string) (*core.DedupRecord, error)
	PutDedupIfAbsent(ctx context.Context, record *core.DedupRecord) error
	DeleteDedupBefore(ctx context.Context, cutoff time.Time) error
}

// SynthesisStore persists group synthesis results with write-once-wins
// semantics: PutSynthesisIfAbsent never overwrites an existing row.
type SynthesisStore interface {
	GetSynthesis(ctx context.Context, groupID string) (*core.SynthesisResult, error)
	PutSynthesisIfAbsent(ctx context.Context, groupID string, result *core.SynthesisResult) error
}

// Store is the full persistence surface the pipeline wires against.
type Store interface {
	ItemStore
	GroupStore
	DedupStore
	SynthesisStore
	Close() error
}
