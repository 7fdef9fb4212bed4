// Package scrape normalizes a captured URL into raw title, description,
// and body text. Scraping runs synchronously at capture time, involves no
// AI, and is available to every tier; failures degrade to a placeholder
// rather than failing the capture.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"stash/internal/core"
	"stash/internal/logger"
)

// maxBodyBytes caps how much of a response we read.
const maxBodyBytes = 4 << 20

// ScrapeError describes a fetch or parse failure. Captures still succeed
// when scraping fails; the error is surfaced for logging only.
type ScrapeError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *ScrapeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("scrape %s: status code %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("scrape %s: %v", e.URL, e.Err)
}

func (e *ScrapeError) Unwrap() error { return e.Err }

// Result is the normalized content extracted from a page.
type Result struct {
	Title       string
	Description string
	Body        string
	Kind        core.SourceKind
}

// Normalizer fetches and extracts page content.
type Normalizer struct {
	client    *http.Client
	userAgent string
}

// New creates a Normalizer with the given request timeout.
func New(timeout time.Duration, userAgent string) *Normalizer {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Normalizer{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Normalize fetches rawURL and extracts title, description, and body.
// Social platforms that block scraping get special handling. On failure
// it returns a minimal placeholder result alongside the error so callers
// can still create the item.
func (n *Normalizer) Normalize(ctx context.Context, rawURL string) (*Result, error) {
	kind := KindForURL(rawURL)

	html, err := n.fetch(ctx, rawURL)
	if err != nil {
		logger.Warn("scrape failed, degrading to placeholder", "url", rawURL, "error", err)
		return placeholderResult(rawURL, kind), err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		wrapped := &ScrapeError{URL: rawURL, Err: err}
		return placeholderResult(rawURL, kind), wrapped
	}

	if kind == core.SourceSocial {
		if isProfessionalNetwork(rawURL) {
			return extractProfessionalPost(doc, rawURL), nil
		}
		return extractMicroblogPost(doc, rawURL), nil
	}

	res := &Result{
		Title:       extractTitle(doc),
		Description: extractDescription(doc),
		Body:        extractBody(doc),
		Kind:        kind,
	}
	if res.Title == "" {
		res.Title = rawURL
	}
	return res, nil
}

func (n *Normalizer) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &ScrapeError{URL: rawURL, Err: err}
	}
	if n.userAgent != "" {
		req.Header.Set("User-Agent", n.userAgent)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return "", &ScrapeError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &ScrapeError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &ScrapeError{URL: rawURL, Err: err}
	}
	return string(body), nil
}

// KindForURL infers the source kind from the URL's host.
func KindForURL(rawURL string) core.SourceKind {
	switch hostOf(rawURL) {
	case "twitter.com", "x.com", "linkedin.com", "bsky.app", "mastodon.social":
		return core.SourceSocial
	case "youtube.com", "youtu.be", "vimeo.com":
		return core.SourceVideo
	default:
		return core.SourceLink
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func isProfessionalNetwork(rawURL string) bool {
	return hostOf(rawURL) == "linkedin.com"
}

func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("head title").First().Text()); title != "" {
		return title
	}
	if ogTitle, _ := doc.Find("meta[property='og:title']").Attr("content"); ogTitle != "" {
		return strings.TrimSpace(ogTitle)
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return ""
}

func extractDescription(doc *goquery.Document) string {
	if desc, _ := doc.Find("meta[name='description']").Attr("content"); desc != "" {
		return strings.TrimSpace(desc)
	}
	if ogDesc, _ := doc.Find("meta[property='og:description']").Attr("content"); ogDesc != "" {
		return strings.TrimSpace(ogDesc)
	}
	return ""
}

// extractBody pulls readable text, preferring semantic containers and
// stripping boilerplate elements first.
func extractBody(doc *goquery.Document) string {
	doc.Find("script, style, nav, footer, header, aside, form, iframe, noscript, .sidebar, #sidebar, .ad, .advertisement, .popup, .modal, .cookie-banner").Remove()

	mainContentSelectors := []string{
		"article",
		"main",
		"[role='main']",
		".post-content",
		".entry-content",
		"#content",
	}

	var parts []string
	for _, selector := range mainContentSelectors {
		doc.Find(selector).First().Find("p, h1, h2, h3, h4, h5, h6, li, blockquote, pre").Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); text != "" {
				parts = append(parts, text)
			}
		})
		if len(parts) > 0 {
			break
		}
	}

	if len(parts) == 0 {
		doc.Find("body").Find("p, h1, h2, h3, li, blockquote").Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); text != "" {
				parts = append(parts, text)
			}
		})
	}

	return strings.Join(parts, "\n\n")
}

// extractMicroblogPost handles microblogging hosts, which serve scrapers
// nothing but meta tags. The og: tags usually carry the post text; if even
// those are missing the body asks the user to paste the content manually.
func extractMicroblogPost(doc *goquery.Document, rawURL string) *Result {
	res := &Result{Kind: core.SourceSocial}

	if ogTitle, _ := doc.Find("meta[property='og:title']").Attr("content"); ogTitle != "" {
		res.Title = strings.TrimSpace(ogTitle)
	}
	if ogDesc, _ := doc.Find("meta[property='og:description']").Attr("content"); ogDesc != "" {
		res.Description = strings.TrimSpace(ogDesc)
		res.Body = res.Description
	}

	if res.Title == "" {
		res.Title = rawURL
	}
	if res.Body == "" {
		res.Body = "This social post could not be scraped. Paste the post text into the item notes to include it in digests."
	}
	return res
}

// extractProfessionalPost handles professional-network hosts. Their public
// post pages carry og: tags plus real article markup for long-form posts,
// so missing tags fall back to the standard extraction rather than the
// paste prompt.
func extractProfessionalPost(doc *goquery.Document, rawURL string) *Result {
	res := &Result{Kind: core.SourceSocial}

	if ogTitle, _ := doc.Find("meta[property='og:title']").Attr("content"); ogTitle != "" {
		res.Title = strings.TrimSpace(ogTitle)
	}
	if ogDesc, _ := doc.Find("meta[property='og:description']").Attr("content"); ogDesc != "" {
		res.Description = strings.TrimSpace(ogDesc)
	}

	res.Body = extractBody(doc)
	if res.Body == "" {
		res.Body = res.Description
	}
	if res.Title == "" {
		res.Title = extractTitle(doc)
	}
	if res.Title == "" {
		res.Title = rawURL
	}
	return res
}

func placeholderResult(rawURL string, kind core.SourceKind) *Result {
	return &Result{
		Title: rawURL,
		Body:  "",
		Kind:  kind,
	}
}
