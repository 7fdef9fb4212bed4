// Package pipeline wires capture, classification, dispatch, and digest
// generation into the public operations the CLI exposes. Capture is
// synchronous and free; everything involving AI happens asynchronously
// behind RequestProcessing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"stash/internal/classify"
	"stash/internal/core"
	"stash/internal/dedup"
	"stash/internal/digestcache"
	"stash/internal/dispatch"
	"stash/internal/entitlement"
	"stash/internal/logger"
	"stash/internal/metrics"
	"stash/internal/scrape"
	"stash/internal/store"
)

var (
	// ErrNotEntitled means the owner's tier does not include AI processing.
	ErrNotEntitled = errors.New("tier does not include AI processing")
	// ErrNotFound means the referenced item does not exist for this owner.
	ErrNotFound = errors.New("item not found")
)

// Scraper is the capture-time content normalizer.
type Scraper interface {
	Normalize(ctx context.Context, rawURL string) (*scrape.Result, error)
}

// Digester produces item digests and group syntheses.
type Digester interface {
	DigestItem(ctx context.Context, item *core.ContentItem) (*core.ItemDigest, error)
	SynthesizeGroup(ctx context.Context, category string, summaries []core.ItemSummary) (*core.SynthesisResult, error)
}

// Pipeline is the application core.
type Pipeline struct {
	store        store.Store
	scraper      Scraper
	taxonomy     *classify.Taxonomy
	digester     Digester
	cache        *digestcache.Cache
	ledger       *dedup.Ledger
	entitlements entitlement.Source
	dispatcher   dispatch.Dispatcher
	now          func() time.Time

	// completionMu serializes group completion checks so concurrent sibling
	// handlers cannot both observe an all-ready group and synthesize twice.
	completionMu sync.Mutex
}

// New creates a Pipeline. The dispatcher is attached separately via
// SetDispatcher because its handler is the pipeline itself.
func New(s store.Store, scraper Scraper, taxonomy *classify.Taxonomy, digester Digester, ledger *dedup.Ledger, ent entitlement.Source) *Pipeline {
	return &Pipeline{
		store:        s,
		scraper:      scraper,
		taxonomy:     taxonomy,
		digester:     digester,
		cache:        digestcache.New(s),
		ledger:       ledger,
		entitlements: ent,
		now:          time.Now,
	}
}

// SetDispatcher attaches the work dispatcher.
func (p *Pipeline) SetDispatcher(d dispatch.Dispatcher) {
	p.dispatcher = d
}

// CaptureOptions carry optional user-supplied metadata for a capture.
type CaptureOptions struct {
	Category string // explicit category, skips the classifier suggestion
	Kind     string // explicit source kind, else inferred from the URL
}

// Capture saves a URL synchronously: scrape, suggest a category, persist.
// It never calls AI and never fails because scraping failed; a degraded
// item with a placeholder body is still a successful capture.
func (p *Pipeline) Capture(ctx context.Context, owner, rawURL string, opts CaptureOptions) (*core.ContentItem, error) {
	res, scrapeErr := p.scraper.Normalize(ctx, rawURL)
	if scrapeErr != nil {
		logger.Warn("capture degraded", "owner", owner, "url", rawURL, "error", scrapeErr)
	}

	now := p.now().UTC()
	item := &core.ContentItem{
		ID:              uuid.NewString(),
		OwnerID:         owner,
		SourceURL:       rawURL,
		SourceKind:      res.Kind,
		RawTitle:        res.Title,
		RawBody:         res.Body,
		RawDescription:  res.Description,
		Status:          core.StatusInbox,
		ProcessingState: core.StateScraped,
		CreatedAt:       now,
	}
	if opts.Kind != "" {
		item.SourceKind = core.ParseSourceKind(opts.Kind)
	}

	if opts.Category != "" {
		item.Category = opts.Category
	} else {
		// Free synchronous suggestion from the keyword classifier.
		item.Category = p.taxonomy.Classify(item)
	}
	item.PriorityScore = metrics.Priority(item.CreatedAt, 0, now)

	if err := p.store.Put(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to save captured item: %w", err)
	}
	return item, nil
}

// CaptureFromFeed captures one feed entry unless the dedup ledger has seen
// it within retention. Returns (nil, false, nil) on a silent skip.
func (p *Pipeline) CaptureFromFeed(ctx context.Context, owner string, entry core.FeedEntry) (*core.ContentItem, bool, error) {
	fp := dedup.Fingerprint(entry.GUID, entry.Link)

	seen, err := p.ledger.Seen(ctx, owner, fp)
	if err != nil {
		return nil, false, fmt.Errorf("dedup lookup failed: %w", err)
	}
	if seen {
		logger.Debug("skipping duplicate feed entry", "owner", owner, "link", entry.Link)
		return nil, false, nil
	}

	item, err := p.Capture(ctx, owner, entry.Link, CaptureOptions{})
	if err != nil {
		return nil, false, err
	}
	// Feed metadata beats whatever scraping recovered when scraping gave us
	// nothing useful.
	if item.RawTitle == "" || item.RawTitle == entry.Link {
		if entry.Title != "" {
			item.RawTitle = entry.Title
			if err := p.store.Put(ctx, item); err != nil {
				return nil, false, err
			}
		}
	}

	if err := p.ledger.Record(ctx, owner, fp, entry.FeedID, entry.Link, item.ID); err != nil {
		return nil, false, fmt.Errorf("dedup record failed: %w", err)
	}
	return item, true, nil
}

// MarkReviewed records a review: the item leaves the inbox, its review
// count grows, and its priority decays accordingly.
func (p *Pipeline) MarkReviewed(ctx context.Context, owner, id string) (*core.ContentItem, error) {
	item, err := p.store.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}

	now := p.now().UTC()
	reviewed := item.TimesReviewed + 1
	patch := map[string]any{
		store.FieldStatus:         core.StatusCompleted,
		store.FieldTimesReviewed:  reviewed,
		store.FieldLastReviewedAt: now,
		store.FieldPriorityScore:  metrics.Priority(item.CreatedAt, reviewed, now),
	}
	if err := p.store.UpdateFields(ctx, owner, id, patch); err != nil {
		return nil, fmt.Errorf("failed to record review: %w", err)
	}
	return p.store.Get(ctx, owner, id)
}

// Streak reports the owner's consecutive-day review streak.
func (p *Pipeline) Streak(ctx context.Context, owner string) (metrics.StreakResult, error) {
	var activity []time.Time
	for _, status := range []core.Status{core.StatusInbox, core.StatusCompleted, core.StatusArchived} {
		items, err := p.store.QueryByOwnerAndStatus(ctx, owner, status)
		if err != nil {
			return metrics.StreakResult{}, err
		}
		for _, item := range items {
			if !item.LastReviewedAt.IsZero() {
				activity = append(activity, item.LastReviewedAt)
			}
		}
	}
	return metrics.Streak(activity, p.now().UTC()), nil
}

// SweepDedup removes expired dedup ledger rows.
func (p *Pipeline) SweepDedup(ctx context.Context) error {
	return p.ledger.Sweep(ctx)
}
