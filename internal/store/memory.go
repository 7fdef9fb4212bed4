package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"stash/internal/core"
)

// Memory is a mutex-guarded in-memory Store, used by tests and ephemeral
// runs. Semantics match the SQLite implementation, including (nil, nil)
// misses and write-once synthesis rows.
type Memory struct {
	mu        sync.Mutex
	items     map[string]*core.ContentItem // owner/id
	groups    map[string]*core.Group
	dedup     map[string]*core.DedupRecord // owner/fingerprint
	synthesis map[string]*core.SynthesisResult
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		items:     make(map[string]*core.ContentItem),
		groups:    make(map[string]*core.Group),
		dedup:     make(map[string]*core.DedupRecord),
		synthesis: make(map[string]*core.SynthesisResult),
	}
}

func itemKey(owner, id string) string { return owner + "/" + id }

// Put upserts a content item.
func (m *Memory) Put(ctx context.Context, item *core.ContentItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *item
	m.items[itemKey(item.OwnerID, item.ID)] = &copied
	return nil
}

// Get retrieves one item; missing keys are a (nil, nil) miss.
func (m *Memory) Get(ctx context.Context, owner, id string) (*core.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[itemKey(owner, id)]
	if !ok {
		return nil, nil
	}
	copied := *item
	return &copied, nil
}

// UpdateFields applies a patch to one item.
func (m *Memory) UpdateFields(ctx context.Context, owner, id string, patch map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[itemKey(owner, id)]
	if !ok {
		return fmt.Errorf("item %s/%s not found", owner, id)
	}

	for field, value := range patch {
		if err := applyField(item, field, value); err != nil {
			return err
		}
	}
	return nil
}

// QueryByOwnerAndStatus lists an owner's items in one user-facing status.
func (m *Memory) QueryByOwnerAndStatus(ctx context.Context, owner string, status core.Status) ([]*core.ContentItem, error) {
	return m.query(owner, func(item *core.ContentItem) bool { return item.Status == status })
}

// QueryByOwnerAndState lists an owner's items in one processing state.
func (m *Memory) QueryByOwnerAndState(ctx context.Context, owner string, state core.ProcessingState) ([]*core.ContentItem, error) {
	return m.query(owner, func(item *core.ContentItem) bool { return item.ProcessingState == state })
}

func (m *Memory) query(owner string, match func(*core.ContentItem) bool) ([]*core.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var items []*core.ContentItem
	for _, item := range m.items {
		if item.OwnerID == owner && match(item) {
			copied := *item
			items = append(items, &copied)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

// PutGroup upserts a processing-group record.
func (m *Memory) PutGroup(ctx context.Context, group *core.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *group
	m.groups[group.ID] = &copied
	return nil
}

// GetGroup retrieves a group record.
func (m *Memory) GetGroup(ctx context.Context, id string) (*core.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	group, ok := m.groups[id]
	if !ok {
		return nil, nil
	}
	copied := *group
	return &copied, nil
}

// QueryOpenGroups lists an owner's not-yet-done groups.
func (m *Memory) QueryOpenGroups(ctx context.Context, owner string) ([]*core.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var groups []*core.Group
	for _, group := range m.groups {
		if group.OwnerID == owner && !group.Done {
			copied := *group
			groups = append(groups, &copied)
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].CreatedAt.Equal(groups[j].CreatedAt) {
			return groups[i].ID < groups[j].ID
		}
		return groups[i].CreatedAt.Before(groups[j].CreatedAt)
	})
	return groups, nil
}

// MarkGroupDone flags a group as completed.
func (m *Memory) MarkGroupDone(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if group, ok := m.groups[id]; ok {
		group.Done = true
	}
	return nil
}

// GetDedup retrieves a dedup record.
func (m *Memory) GetDedup(ctx context.Context, owner, fingerprint string) (*core.DedupRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.dedup[itemKey(owner, fingerprint)]
	if !ok {
		return nil, nil
	}
	copied := *rec
	return &copied, nil
}

// PutDedupIfAbsent records a fingerprint once; repeats are silent no-ops.
func (m *Memory) PutDedupIfAbsent(ctx context.Context, record *core.DedupRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := itemKey(record.OwnerID, record.Fingerprint)
	if _, exists := m.dedup[key]; exists {
		return nil
	}
	copied := *record
	m.dedup[key] = &copied
	return nil
}

// DeleteDedupBefore sweeps ledger rows older than the retention cutoff.
func (m *Memory) DeleteDedupBefore(ctx context.Context, cutoff time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, rec := range m.dedup {
		if rec.FirstSeenAt.Before(cutoff) {
			delete(m.dedup, key)
		}
	}
	return nil
}

// GetSynthesis retrieves a cached synthesis result.
func (m *Memory) GetSynthesis(ctx context.Context, groupID string) (*core.SynthesisResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.synthesis[groupID]
	if !ok {
		return nil, nil
	}
	copied := *res
	return &copied, nil
}

// PutSynthesisIfAbsent caches a synthesis result write-once.
func (m *Memory) PutSynthesisIfAbsent(ctx context.Context, groupID string, result *core.SynthesisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.synthesis[groupID]; exists {
		return nil
	}
	copied := *result
	m.synthesis[groupID] = &copied
	return nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error { return nil }

func applyField(item *core.ContentItem, field string, value any) error {
	switch field {
	case FieldStatus:
		item.Status = value.(core.Status)
	case FieldProcessingState:
		item.ProcessingState = value.(core.ProcessingState)
	case FieldCategory:
		item.Category = value.(string)
	case FieldTitle:
		item.Title = value.(string)
	case FieldSummary:
		item.Summary = value.(string)
	case FieldKeyPoints:
		item.KeyPoints = value.([]string)
	case FieldQuestion:
		item.Question = value.(string)
	case FieldSummarizedAt:
		item.SummarizedAt = value.(time.Time)
	case FieldDigestFallback:
		item.DigestFallback = value.(bool)
	case FieldPriorityScore:
		item.PriorityScore = value.(float64)
	case FieldLastReviewedAt:
		item.LastReviewedAt = value.(time.Time)
	case FieldTimesReviewed:
		item.TimesReviewed = value.(int)
	default:
		return fmt.Errorf("unknown patch field %q", field)
	}
	return nil
}
