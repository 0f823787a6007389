package scraper

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// SiteScraper walks the auction site's paginated search results over
// plain HTTP. The cursor is the 1-based page number.
type SiteScraper struct {
	baseURL string
	client  *http.Client
}

// NewSiteScraper builds a scraper for the given search URL (the URL
// without page parameters).
func NewSiteScraper(baseURL string, timeout time.Duration) *SiteScraper {
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &SiteScraper{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// FetchBatch fetches one search page, collects its item links, and
// downloads each detail page. A page without item links signals
// exhaustion. The whole page is always returned: the cursor addresses
// pages, not positions within one, so a batch trimmed to size would
// orphan the surplus links on every run. The size argument is an
// advisory lower bound the site's fixed page length already satisfies.
// An individual detail page failing to download is logged and dropped
// from the batch; the run carries on.
func (s *SiteScraper) FetchBatch(ctx context.Context, cursor, _ int) (*Batch, error) {
	if cursor < 1 {
		cursor = 1
	}

	pageURL, err := buildPageURL(s.baseURL, cursor)
	if err != nil {
		return nil, &FatalError{Err: err}
	}

	doc, err := s.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	links := itemLinks(doc, pageURL)
	if len(links) == 0 {
		return &Batch{NextCursor: cursor, Exhausted: true}, nil
	}

	batch := &Batch{NextCursor: cursor + 1}
	for _, link := range links {
		html, err := s.fetchRaw(ctx, link)
		if err != nil {
			if IsFatal(err) {
				return nil, err
			}
			log.Printf("Skipping detail page %s: %v", link, err)
			continue
		}
		batch.Raw = append(batch.Raw, RawListing{URL: link, HTML: html})
	}

	return batch, nil
}

func (s *SiteScraper) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	body, err := s.fetchRaw(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", pageURL, err)
	}
	return doc, nil
}

func (s *SiteScraper) fetchRaw(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &FatalError{Err: fmt.Errorf("site rejected request: %s", resp.Status)}
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("site returned %s for %s", resp.Status, rawURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", rawURL, err)
	}
	return string(body), nil
}

// itemLinks extracts the listing detail URLs from a search page. The
// site links listing cards as /item/...#content; the scrapeable detail
// view lives under /item/.../details instead.
func itemLinks(doc *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := map[string]bool{}
	var links []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if !strings.Contains(abs.Path, "/item/") || abs.Fragment != "content" {
			return
		}
		abs.Fragment = ""
		abs.Path = strings.TrimSuffix(abs.Path, "/") + "/details"
		link := abs.String()
		if !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
	})
	return links
}

func buildPageURL(base string, page int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url %s: %w", base, err)
	}
	q := parsed.Query()
	q.Set("currentPage", strconv.Itoa(page))
	q.Set("pageType", "next")
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}
