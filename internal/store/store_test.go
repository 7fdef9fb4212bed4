package store

import (
	"context"
	"testing"
	"time"

	"stash/internal/core"
)

// storeImpls lists the implementations under test so both share one suite.
func storeImpls(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLite(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func sampleItem(owner, id string) *core.ContentItem {
	return &core.ContentItem{
		ID:              id,
		OwnerID:         owner,
		SourceURL:       "https://example.com/post",
		SourceKind:      core.SourceLink,
		RawTitle:        "A post",
		Status:          core.StatusInbox,
		ProcessingState: core.StateScraped,
		CreatedAt:       time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			item := sampleItem("u1", "i1")
			item.KeyPoints = []string{"one", "two"}

			if err := s.Put(ctx, item); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			got, err := s.Get(ctx, "u1", "i1")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if got == nil {
				t.Fatal("expected item, got miss")
			}
			if got.RawTitle != "A post" || got.Status != core.StatusInbox {
				t.Errorf("unexpected item: %+v", got)
			}
			if len(got.KeyPoints) != 2 {
				t.Errorf("key points not round-tripped: %v", got.KeyPoints)
			}
		})
	}
}

func TestGetMissReturnsNilNil(t *testing.T) {
	ctx := context.Background()
	for name, s := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			got, err := s.Get(ctx, "u1", "missing")
			if err != nil {
				t.Fatalf("expected nil error on miss, got %v", err)
			}
			if got != nil {
				t.Errorf("expected nil item on miss, got %+v", got)
			}
		})
	}
}

func TestUpdateFields(t *testing.T) {
	ctx := context.Background()
	for name, s := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Put(ctx, sampleItem("u1", "i1")); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			err := s.UpdateFields(ctx, "u1", "i1", map[string]any{
				FieldProcessingState: core.StateReady,
				FieldSummary:         "done",
				FieldKeyPoints:       []string{"a", "b", "c"},
				FieldTimesReviewed:   2,
			})
			if err != nil {
				t.Fatalf("UpdateFields failed: %v", err)
			}

			got, _ := s.Get(ctx, "u1", "i1")
			if got.ProcessingState != core.StateReady {
				t.Errorf("state not updated: %s", got.ProcessingState)
			}
			if got.Summary != "done" || got.TimesReviewed != 2 {
				t.Errorf("fields not updated: %+v", got)
			}
			if len(got.KeyPoints) != 3 {
				t.Errorf("key points not updated: %v", got.KeyPoints)
			}
		})
	}
}

func TestUpdateFieldsRejectsUnknownField(t *testing.T) {
	ctx := context.Background()
	for name, s := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Put(ctx, sampleItem("u1", "i1")); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			if err := s.UpdateFields(ctx, "u1", "i1", map[string]any{"owner_id": "evil"}); err == nil {
				t.Error("expected error for unknown patch field")
			}
		})
	}
}

func TestQueryByOwnerAndStatus(t *testing.T) {
	ctx := context.Background()
	for name, s := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			a := sampleItem("u1", "a")
			b := sampleItem("u1", "b")
			b.Status = core.StatusArchived
			other := sampleItem("u2", "c")
			for _, item := range []*core.ContentItem{a, b, other} {
				if err := s.Put(ctx, item); err != nil {
					t.Fatalf("Put failed: %v", err)
				}
			}

			inbox, err := s.QueryByOwnerAndStatus(ctx, "u1", core.StatusInbox)
			if err != nil {
				t.Fatalf("query failed: %v", err)
			}
			if len(inbox) != 1 || inbox[0].ID != "a" {
				t.Errorf("unexpected inbox query result: %+v", inbox)
			}
		})
	}
}

func TestDedupPutIfAbsentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	for name, s := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			first := &core.DedupRecord{
				OwnerID: "u1", Fingerprint: "fp", SourceFeedID: "feed-1",
				URL: "https://example.com", ResultingItemID: "i1",
				FirstSeenAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
			}
			second := *first
			second.ResultingItemID = "i2"

			if err := s.PutDedupIfAbsent(ctx, first); err != nil {
				t.Fatalf("first put failed: %v", err)
			}
			if err := s.PutDedupIfAbsent(ctx, &second); err != nil {
				t.Fatalf("second put failed: %v", err)
			}

			got, err := s.GetDedup(ctx, "u1", "fp")
			if err != nil || got == nil {
				t.Fatalf("GetDedup failed: %v, %v", got, err)
			}
			if got.ResultingItemID != "i1" {
				t.Errorf("second write overwrote the record: %+v", got)
			}
		})
	}
}

func TestDedupRetentionSweep(t *testing.T) {
	ctx := context.Background()
	for name, s := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			old := &core.DedupRecord{OwnerID: "u1", Fingerprint: "old", FirstSeenAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
			fresh := &core.DedupRecord{OwnerID: "u1", Fingerprint: "fresh", FirstSeenAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)}
			s.PutDedupIfAbsent(ctx, old)
			s.PutDedupIfAbsent(ctx, fresh)

			if err := s.DeleteDedupBefore(ctx, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)); err != nil {
				t.Fatalf("sweep failed: %v", err)
			}

			if got, _ := s.GetDedup(ctx, "u1", "old"); got != nil {
				t.Error("expected expired record to be swept")
			}
			if got, _ := s.GetDedup(ctx, "u1", "fresh"); got == nil {
				t.Error("expected fresh record to survive the sweep")
			}
		})
	}
}

func TestSynthesisWriteOnce(t *testing.T) {
	ctx := context.Background()
	for name, s := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			first := &core.SynthesisResult{Title: "first", Summary: "s1", GeneratedAt: time.Now().UTC()}
			second := &core.SynthesisResult{Title: "second", Summary: "s2", GeneratedAt: time.Now().UTC()}

			if err := s.PutSynthesisIfAbsent(ctx, "g1", first); err != nil {
				t.Fatalf("first put failed: %v", err)
			}
			if err := s.PutSynthesisIfAbsent(ctx, "g1", second); err != nil {
				t.Fatalf("second put failed: %v", err)
			}

			got, err := s.GetSynthesis(ctx, "g1")
			if err != nil || got == nil {
				t.Fatalf("GetSynthesis failed: %v, %v", got, err)
			}
			if got.Title != "first" {
				t.Errorf("write-once violated: got %q", got.Title)
			}
		})
	}
}

func TestGroupRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			group := &core.Group{
				ID: "g1", OwnerID: "u1", Category: "technology",
				MemberIDs: []string{"a", "b"},
				CreatedAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
			}
			if err := s.PutGroup(ctx, group); err != nil {
				t.Fatalf("PutGroup failed: %v", err)
			}

			got, err := s.GetGroup(ctx, "g1")
			if err != nil || got == nil {
				t.Fatalf("GetGroup failed: %v, %v", got, err)
			}
			if len(got.MemberIDs) != 2 || got.Done {
				t.Errorf("unexpected group: %+v", got)
			}

			if err := s.MarkGroupDone(ctx, "g1"); err != nil {
				t.Fatalf("MarkGroupDone failed: %v", err)
			}
			got, _ = s.GetGroup(ctx, "g1")
			if !got.Done {
				t.Error("expected group marked done")
			}
		})
	}
}

func TestQueryOpenGroups(t *testing.T) {
	ctx := context.Background()
	for name, s := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
			for i, id := range []string{"g1", "g2", "g3"} {
				group := &core.Group{
					ID: id, OwnerID: "u1", Category: "technology",
					MemberIDs: []string{"a"},
					CreatedAt: base.Add(time.Duration(i) * time.Minute),
				}
				if err := s.PutGroup(ctx, group); err != nil {
					t.Fatalf("PutGroup failed: %v", err)
				}
			}
			if err := s.PutGroup(ctx, &core.Group{
				ID: "other", OwnerID: "u2", Category: "science",
				MemberIDs: []string{"z"}, CreatedAt: base,
			}); err != nil {
				t.Fatalf("PutGroup failed: %v", err)
			}

			if err := s.MarkGroupDone(ctx, "g2"); err != nil {
				t.Fatalf("MarkGroupDone failed: %v", err)
			}

			open, err := s.QueryOpenGroups(ctx, "u1")
			if err != nil {
				t.Fatalf("QueryOpenGroups failed: %v", err)
			}
			if len(open) != 2 || open[0].ID != "g1" || open[1].ID != "g3" {
				t.Errorf("unexpected open groups: %+v", open)
			}
		})
	}
}
