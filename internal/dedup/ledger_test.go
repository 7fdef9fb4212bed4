package dedup

import (
	"context"
	"testing"
	"time"

	"stash/internal/store"
)

func TestFingerprintPrefersGUID(t *testing.T) {
	withGUID := Fingerprint("guid-123", "https://example.com/a")
	sameGUIDOtherURL := Fingerprint("guid-123", "https://example.com/b")
	noGUID := Fingerprint("", "https://example.com/a")

	if withGUID != sameGUIDOtherURL {
		t.Error("expected GUID to dominate the fingerprint")
	}
	if withGUID == noGUID {
		t.Error("expected GUID and URL fingerprints to differ")
	}
}

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.Example.com/Posts/1/", "example.com/Posts/1"},
		{"https://example.com/Posts/1?utm_source=x#frag", "example.com/Posts/1"},
		{"http://example.com", "example.com"},
		{"not a url", "not a url"},
	}

	for _, tt := range tests {
		if got := CanonicalURL(tt.in); got != tt.want {
			t.Errorf("CanonicalURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFingerprintEquivalentURLs(t *testing.T) {
	a := Fingerprint("", "https://www.example.com/posts/1/")
	b := Fingerprint("", "https://example.com/posts/1?ref=feed")
	if a != b {
		t.Error("expected equivalent URLs to share a fingerprint")
	}
}

func TestSeenAndRecord(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger(store.NewMemory(), DefaultRetention)

	fp := Fingerprint("guid-1", "")
	seen, err := ledger.Seen(ctx, "u1", fp)
	if err != nil || seen {
		t.Fatalf("expected fresh fingerprint to be unseen, got seen=%v err=%v", seen, err)
	}

	if err := ledger.Record(ctx, "u1", fp, "feed-1", "https://example.com", "item-1"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	seen, err = ledger.Seen(ctx, "u1", fp)
	if err != nil || !seen {
		t.Fatalf("expected recorded fingerprint to be seen, got seen=%v err=%v", seen, err)
	}

	// Other owners are unaffected.
	seen, _ = ledger.Seen(ctx, "u2", fp)
	if seen {
		t.Error("fingerprints must be scoped per owner")
	}
}

func TestRecordIsIdempotent(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	ledger := NewLedger(mem, DefaultRetention)

	fp := Fingerprint("guid-1", "")
	if err := ledger.Record(ctx, "u1", fp, "feed-1", "u", "item-1"); err != nil {
		t.Fatalf("first record failed: %v", err)
	}
	if err := ledger.Record(ctx, "u1", fp, "feed-2", "u", "item-2"); err != nil {
		t.Fatalf("second record failed: %v", err)
	}

	rec, err := mem.GetDedup(ctx, "u1", fp)
	if err != nil || rec == nil {
		t.Fatalf("GetDedup failed: %v", err)
	}
	if rec.ResultingItemID != "item-1" {
		t.Errorf("repeat record overwrote the original: %+v", rec)
	}
}

func TestSeenExpiresAfterRetention(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger(store.NewMemory(), 24*time.Hour)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return base }

	fp := Fingerprint("guid-1", "")
	if err := ledger.Record(ctx, "u1", fp, "feed-1", "u", "item-1"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	ledger.now = func() time.Time { return base.Add(2 * 24 * time.Hour) }
	seen, err := ledger.Seen(ctx, "u1", fp)
	if err != nil {
		t.Fatalf("Seen failed: %v", err)
	}
	if seen {
		t.Error("expected fingerprint to expire after retention, allowing resurfacing")
	}
}
