// Package feeds fetches and parses RSS/Atom feeds into capture candidates.
// Feed entries are the only capture path that consults the dedup ledger.
package feeds

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"stash/internal/core"
)

// RSS is the top-level RSS document shape.
type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Channel Channel  `xml:"channel"`
}

// Channel is an RSS channel.
type Channel struct {
	Title       string    `xml:"title"`
	Description string    `xml:"description"`
	Link        string    `xml:"link"`
	Items       []RSSItem `xml:"item"`
}

// RSSItem is one RSS item.
type RSSItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

// Atom is the top-level Atom document shape.
type Atom struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Link    []AtomLink  `xml:"link"`
	Entries []AtomEntry `xml:"entry"`
}

// AtomLink is an Atom link element.
type AtomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

// AtomEntry is one Atom entry.
type AtomEntry struct {
	Title     string     `xml:"title"`
	Link      []AtomLink `xml:"link"`
	Summary   string     `xml:"summary"`
	Published string     `xml:"published"`
	ID        string     `xml:"id"`
}

// Fetched is the result of one feed fetch.
type Fetched struct {
	FeedID       string
	Title        string
	Entries      []core.FeedEntry
	LastModified string
	ETag         string
	NotModified  bool
}

// Fetcher fetches and parses feeds.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher creates a feed fetcher.
func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Fetch retrieves a feed, honoring conditional GET headers from a prior
// fetch. On 304 it returns NotModified with no entries.
func (f *Fetcher) Fetch(ctx context.Context, feedURL, lastModified, etag string) (*Fetched, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotModified {
		return &Fetched{FeedID: FeedID(feedURL), NotModified: true}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed body: %w", err)
	}

	fetched, err := Parse(body, feedURL)
	if err != nil {
		return nil, err
	}
	fetched.LastModified = resp.Header.Get("Last-Modified")
	fetched.ETag = resp.Header.Get("ETag")
	return fetched, nil
}

// Parse decodes feed bytes, trying RSS first and then Atom.
func Parse(body []byte, feedURL string) (*Fetched, error) {
	var rss RSS
	if err := xml.Unmarshal(body, &rss); err == nil && rss.Channel.Title != "" {
		return parseRSS(rss, feedURL), nil
	}

	var atom Atom
	if err := xml.Unmarshal(body, &atom); err == nil && atom.Title != "" {
		return parseAtom(atom, feedURL), nil
	}

	return nil, fmt.Errorf("unable to parse as RSS or Atom feed")
}

func parseRSS(rss RSS, feedURL string) *Fetched {
	feedID := FeedID(feedURL)
	entries := make([]core.FeedEntry, 0, len(rss.Channel.Items))
	for _, item := range rss.Channel.Items {
		entries = append(entries, core.FeedEntry{
			FeedID:      feedID,
			Title:       item.Title,
			Link:        item.Link,
			Description: item.Description,
			GUID:        item.GUID,
			Published:   parseRSSDate(item.PubDate),
		})
	}
	return &Fetched{FeedID: feedID, Title: rss.Channel.Title, Entries: entries}
}

func parseAtom(atom Atom, feedURL string) *Fetched {
	feedID := FeedID(feedURL)
	entries := make([]core.FeedEntry, 0, len(atom.Entries))
	for _, entry := range atom.Entries {
		var link string
		for _, l := range entry.Link {
			if l.Rel == "" || l.Rel == "alternate" {
				link = l.Href
				break
			}
		}
		entries = append(entries, core.FeedEntry{
			FeedID:      feedID,
			Title:       entry.Title,
			Link:        link,
			Description: entry.Summary,
			GUID:        entry.ID,
			Published:   parseAtomDate(entry.Published),
		})
	}
	return &Fetched{FeedID: feedID, Title: atom.Title, Entries: entries}
}

// FeedID is a deterministic feed identifier derived from the URL.
func FeedID(feedURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(feedURL)).String()
}

func parseRSSDate(dateStr string) time.Time {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return time.Time{}
	}
	formats := []string{
		time.RFC1123,
		time.RFC1123Z,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 MST",
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func parseAtomDate(dateStr string) time.Time {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, dateStr); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
