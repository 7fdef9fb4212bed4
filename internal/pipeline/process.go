package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"stash/internal/core"
	"stash/internal/dispatch"
	"stash/internal/logger"
	"stash/internal/metrics"
	"stash/internal/store"
	"stash/internal/summarize"
)

// groupedItemNamespace derives deterministic ids for synthesized group
// items, so a re-delivered join check upserts instead of duplicating.
var groupedItemNamespace = uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")

// Receipt reports what RequestProcessing scheduled.
type Receipt struct {
	ItemCount  int // items dispatched for digestion
	GroupCount int // multi-item groups among them
}

// RequestProcessing classifies and groups the owner's unprocessed inbox
// items, then dispatches background work for each. With explicit ids only
// those items are considered; otherwise every unprocessed inbox item is.
// It returns immediately; callers poll GetStatus for progress. Owners
// whose tier excludes AI get ErrNotEntitled and nothing is scheduled.
func (p *Pipeline) RequestProcessing(ctx context.Context, owner string, ids ...string) (*Receipt, error) {
	tier := p.entitlements.TierFor(owner)
	if !tier.AIAllowed {
		return nil, fmt.Errorf("%w: tier %q", ErrNotEntitled, tier.Name)
	}

	inbox, err := p.store.QueryByOwnerAndStatus(ctx, owner, core.StatusInbox)
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox: %w", err)
	}

	var wanted map[string]bool
	if len(ids) > 0 {
		wanted = make(map[string]bool, len(ids))
		for _, id := range ids {
			wanted[id] = true
		}
	}

	var candidates []*core.ContentItem
	for _, item := range inbox {
		if wanted != nil && !wanted[item.ID] {
			continue
		}
		// Grouped digests are final; already-dispatched items are in flight.
		if item.IsGrouped || item.ProcessingState != core.StateScraped {
			continue
		}
		candidates = append(candidates, item)
	}
	if len(candidates) == 0 {
		return &Receipt{}, nil
	}

	batches := p.taxonomy.Group(candidates, tier.BatchLimit)
	receipt := &Receipt{}
	for _, batch := range batches {
		groupID := ""
		if !batch.Singleton() {
			group := &core.Group{
				ID:        uuid.NewString(),
				OwnerID:   owner,
				Category:  batch.Category,
				CreatedAt: p.now().UTC(),
			}
			for _, item := range batch.Items {
				group.MemberIDs = append(group.MemberIDs, item.ID)
			}
			if err := p.store.PutGroup(ctx, group); err != nil {
				return nil, fmt.Errorf("failed to save group: %w", err)
			}
			groupID = group.ID
			receipt.GroupCount++
		}

		for _, item := range batch.Items {
			if err := p.store.UpdateFields(ctx, owner, item.ID, map[string]any{
				store.FieldCategory: batch.Category,
			}); err != nil {
				return nil, err
			}
			unit := dispatch.WorkUnit{
				Kind:    dispatch.KindProcessItem,
				OwnerID: owner,
				ItemID:  item.ID,
				GroupID: groupID,
			}
			if err := p.dispatcher.Dispatch(ctx, unit); err != nil {
				return nil, fmt.Errorf("failed to dispatch work: %w", err)
			}
			receipt.ItemCount++
		}
	}

	logger.Info("processing requested", "owner", owner,
		"items", receipt.ItemCount, "groups", receipt.GroupCount)
	return receipt, nil
}

// HandleWork executes one dispatched unit. It is the dispatch.Handler and
// must stay idempotent: re-delivery of a finished unit is a no-op.
func (p *Pipeline) HandleWork(ctx context.Context, unit dispatch.WorkUnit) error {
	switch unit.Kind {
	case dispatch.KindProcessItem:
		return p.processItem(ctx, unit)
	default:
		return fmt.Errorf("unknown work kind %q", unit.Kind)
	}
}

// processItem digests one item and, for group members, re-checks whether
// the whole group just became ready. There is no blocking barrier: the
// last member to finish performs the synthesis.
func (p *Pipeline) processItem(ctx context.Context, unit dispatch.WorkUnit) error {
	item, err := p.store.Get(ctx, unit.OwnerID, unit.ItemID)
	if err != nil {
		return err
	}
	if item == nil {
		logger.Warn("work unit for missing item", "owner", unit.OwnerID, "item", unit.ItemID)
		return nil
	}

	if item.ProcessingState != core.StateReady {
		if err := p.store.UpdateFields(ctx, unit.OwnerID, unit.ItemID, map[string]any{
			store.FieldProcessingState: core.StateProcessing,
		}); err != nil {
			return err
		}

		digest, err := p.digester.DigestItem(ctx, item)
		if err != nil {
			// The item must never stay stuck; degrade to the canned digest.
			logger.Warn("digest failed, using fallback", "item", item.ID, "error", err)
			digest = summarize.FallbackDigest(item)
		}

		if err := p.store.UpdateFields(ctx, unit.OwnerID, unit.ItemID, map[string]any{
			store.FieldTitle:           digest.Title,
			store.FieldSummary:         digest.Summary,
			store.FieldKeyPoints:       digest.KeyPoints,
			store.FieldQuestion:        digest.Question,
			store.FieldSummarizedAt:    p.now().UTC(),
			store.FieldDigestFallback:  digest.Fallback,
			store.FieldProcessingState: core.StateReady,
		}); err != nil {
			return err
		}
	}

	if unit.GroupID != "" {
		return p.checkGroupCompletion(ctx, unit.OwnerID, unit.GroupID)
	}
	return nil
}

// checkGroupCompletion synthesizes the group digest once every member is
// ready. Safe to call from any member's completion or from status polls;
// the synthesis cache and the deterministic grouped-item id make repeated
// completion idempotent.
func (p *Pipeline) checkGroupCompletion(ctx context.Context, owner, groupID string) error {
	p.completionMu.Lock()
	defer p.completionMu.Unlock()

	group, err := p.store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if group == nil || group.Done {
		return nil
	}

	members := make([]*core.ContentItem, 0, len(group.MemberIDs))
	for _, id := range group.MemberIDs {
		member, err := p.store.Get(ctx, owner, id)
		if err != nil {
			return err
		}
		if member == nil || member.ProcessingState != core.StateReady {
			// A sibling is still in flight; its completion handler will
			// re-run this check.
			return nil
		}
		members = append(members, member)
	}

	summaries := make([]core.ItemSummary, 0, len(members))
	for _, m := range members {
		summaries = append(summaries, core.ItemSummary{
			ItemID:    m.ID,
			Title:     m.Title,
			Summary:   m.Summary,
			KeyPoints: m.KeyPoints,
			SourceURL: m.SourceURL,
			Fallback:  m.DigestFallback,
		})
	}

	synthesis, err := p.cache.GetOrCompute(ctx, groupID, func(ctx context.Context) (*core.SynthesisResult, error) {
		res, err := p.digester.SynthesizeGroup(ctx, group.Category, summaries)
		if err != nil {
			logger.Warn("group synthesis failed, using fallback", "group", groupID, "error", err)
			return summarize.FallbackSynthesis(group.Category, summaries), nil
		}
		return res, nil
	})
	if err != nil {
		return err
	}

	now := p.now().UTC()
	grouped := &core.ContentItem{
		ID:              uuid.NewSHA1(groupedItemNamespace, []byte(groupID)).String(),
		OwnerID:         owner,
		SourceKind:      core.SourceOther,
		Category:        group.Category,
		Status:          core.StatusInbox,
		ProcessingState: core.StateReady,
		Title:           synthesis.Title,
		Summary:         synthesis.Summary,
		KeyPoints:       synthesis.KeyPoints,
		Question:        synthesis.Question,
		SummarizedAt:    synthesis.GeneratedAt,
		CreatedAt:       now,
		PriorityScore:   metrics.Priority(now, 0, now),
		IsGrouped:       true,
	}
	for _, m := range members {
		grouped.SourceItemIDs = append(grouped.SourceItemIDs, m.ID)
		grouped.SourceURLs = append(grouped.SourceURLs, m.SourceURL)
	}
	grouped.IndividualSummaries = summaries

	if err := p.store.Put(ctx, grouped); err != nil {
		return fmt.Errorf("failed to save grouped digest: %w", err)
	}

	// Members leave the inbox; the grouped digest replaces them.
	for _, m := range members {
		if err := p.store.UpdateFields(ctx, owner, m.ID, map[string]any{
			store.FieldStatus: core.StatusArchived,
		}); err != nil {
			return err
		}
	}

	if err := p.store.MarkGroupDone(ctx, groupID); err != nil {
		return err
	}
	logger.Info("group digest ready", "owner", owner, "group", groupID, "members", len(members))
	return nil
}

// StatusReport is a point-in-time view of an owner's inbox processing.
type StatusReport struct {
	Items      []*core.ContentItem
	Scraped    int
	Processing int
	Ready      int
}

// GetStatus reports inbox items and their processing-state counts. Partial
// progress is always visible: ready items show their digests while
// siblings are still processing. Polling also re-checks open group joins,
// so a join missed at completion time (a crash between the last member
// turning ready and the synthesis) is recovered on the next poll.
func (p *Pipeline) GetStatus(ctx context.Context, owner string) (*StatusReport, error) {
	groups, err := p.store.QueryOpenGroups(ctx, owner)
	if err != nil {
		return nil, err
	}
	for _, group := range groups {
		if err := p.checkGroupCompletion(ctx, owner, group.ID); err != nil {
			return nil, err
		}
	}

	items, err := p.store.QueryByOwnerAndStatus(ctx, owner, core.StatusInbox)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{Items: items}
	for _, item := range items {
		switch item.ProcessingState {
		case core.StateScraped:
			report.Scraped++
		case core.StateProcessing:
			report.Processing++
		case core.StateReady:
			report.Ready++
		}
	}
	return report, nil
}

// Reprocess re-dispatches a stuck item. This is the only allowed
// processing-state regression. Members of a still-open group keep their
// group binding so the recovered item can complete the join.
func (p *Pipeline) Reprocess(ctx context.Context, owner, id string) error {
	item, err := p.store.Get(ctx, owner, id)
	if err != nil {
		return err
	}
	if item == nil {
		return ErrNotFound
	}

	groupID, err := p.openGroupFor(ctx, owner, id)
	if err != nil {
		return err
	}

	if err := p.store.UpdateFields(ctx, owner, id, map[string]any{
		store.FieldProcessingState: core.StateScraped,
	}); err != nil {
		return err
	}
	return p.dispatcher.Dispatch(ctx, dispatch.WorkUnit{
		Kind:    dispatch.KindProcessItem,
		OwnerID: owner,
		ItemID:  id,
		GroupID: groupID,
	})
}

// openGroupFor finds the not-yet-done group the item belongs to, if any.
func (p *Pipeline) openGroupFor(ctx context.Context, owner, itemID string) (string, error) {
	groups, err := p.store.QueryOpenGroups(ctx, owner)
	if err != nil {
		return "", err
	}
	for _, group := range groups {
		for _, memberID := range group.MemberIDs {
			if memberID == itemID {
				return group.ID, nil
			}
		}
	}
	return "", nil
}
