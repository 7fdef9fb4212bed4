// Package dedup answers "have we already surfaced this content to this
// owner?" using stable fingerprints recorded with a bounded retention
// window. Only feed-sourced captures consult the ledger; direct user
// captures are never deduplicated.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"time"

	"stash/internal/core"
	"stash/internal/store"
)

// DefaultRetention is how long a fingerprint blocks resurfacing.
const DefaultRetention = 30 * 24 * time.Hour

// Ledger is the deduplication ledger.
type Ledger struct {
	store     store.DedupStore
	retention time.Duration
	now       func() time.Time
}

// NewLedger creates a ledger over the given store. A non-positive retention
// falls back to DefaultRetention.
func NewLedger(s store.DedupStore, retention time.Duration) *Ledger {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Ledger{store: s, retention: retention, now: time.Now}
}

// Fingerprint returns a stable dedup token: the hash of the feed entry GUID
// when one exists, else the hash of the canonical URL.
func Fingerprint(guid, rawURL string) string {
	source := strings.TrimSpace(guid)
	if source == "" {
		source = CanonicalURL(rawURL)
	}
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// CanonicalURL normalizes a URL for fingerprinting: lowercased host, www
// prefix, query, fragment, and trailing slash stripped. Unparseable input
// is returned trimmed as-is so it still fingerprints deterministically.
func CanonicalURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.TrimSuffix(u.Path, "/")
	return host + path
}

// Seen reports whether the fingerprint was recorded for this owner within
// the retention window. Records past retention no longer count, so expired
// content may resurface.
func (l *Ledger) Seen(ctx context.Context, owner, fingerprint string) (bool, error) {
	rec, err := l.store.GetDedup(ctx, owner, fingerprint)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}
	return l.now().Sub(rec.FirstSeenAt) < l.retention, nil
}

// Record marks a fingerprint as seen. Idempotent: a repeated call for the
// same (owner, fingerprint) leaves the original record in place.
func (l *Ledger) Record(ctx context.Context, owner, fingerprint, feedID, rawURL, resultingItemID string) error {
	return l.store.PutDedupIfAbsent(ctx, &core.DedupRecord{
		OwnerID:         owner,
		Fingerprint:     fingerprint,
		SourceFeedID:    feedID,
		URL:             rawURL,
		ResultingItemID: resultingItemID,
		FirstSeenAt:     l.now().UTC(),
	})
}

// Sweep deletes records past the retention window.
func (l *Ledger) Sweep(ctx context.Context) error {
	return l.store.DeleteDedupBefore(ctx, l.now().Add(-l.retention))
}
