// Package collector scans library pages for work cards and archive links.
package collector

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/aozoratools/aozorafetch/internal/fetch"
	"github.com/aozoratools/aozorafetch/internal/metrics"
)

// Card pages live at /cards/<person id>/card<work id>.html on the
// library host.
var cardPathPattern = regexp.MustCompile(`^/cards/\d+/card\d+\.html$`)

const archiveExt = ".zip"

// WorkLink points at one work's card page.
type WorkLink struct {
	Title   string
	CardURL string
}

// ArchiveLink pairs a work title with one downloadable archive URL.
type ArchiveLink struct {
	Title string
	URL   string
}

// CollectWorkLinks scans an author page for card links.
// Hrefs are resolved against base; matches are deduplicated by exact URL
// in document order, with the trimmed link text as the title.
func CollectWorkLinks(html string, base *url.URL) ([]WorkLink, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse author page: %w", err)
	}

	seen := make(map[string]struct{})
	var links []WorkLink
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		if !strings.EqualFold(abs.Host, base.Host) {
			return
		}
		if !cardPathPattern.MatchString(abs.Path) {
			return
		}
		key := abs.String()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		links = append(links, WorkLink{
			Title:   strings.TrimSpace(sel.Text()),
			CardURL: key,
		})
	})
	return links, nil
}

// CollectArchiveLinks scans one card page for archive links.
// Hrefs are resolved against the card page's own URL; URLs whose path
// ends in the archive extension (case-insensitive) are kept,
// deduplicated in document order.
func CollectArchiveLinks(html string, pageURL *url.URL) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse card page: %w", err)
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := pageURL.ResolveReference(ref)
		abs.Fragment = ""
		if !strings.HasSuffix(strings.ToLower(abs.Path), archiveExt) {
			return
		}
		key := abs.String()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		links = append(links, key)
	})
	return links, nil
}

// Collector walks an author page and its card pages to gather archive links.
type Collector struct {
	fetcher      fetch.Fetcher
	pauser       fetch.Pauser
	authorURL    string
	base         *url.URL
	pageEncoding string
	delay        time.Duration
	logger       *zap.Logger
}

// New constructs a Collector.
func New(
	fetcher fetch.Fetcher,
	pauser fetch.Pauser,
	authorURL string,
	base *url.URL,
	pageEncoding string,
	delay time.Duration,
	logger *zap.Logger,
) *Collector {
	return &Collector{
		fetcher:      fetcher,
		pauser:       pauser,
		authorURL:    authorURL,
		base:         base,
		pageEncoding: pageEncoding,
		delay:        delay,
		logger:       logger,
	}
}

// Run fetches the author page, walks every card page, and returns the
// globally deduplicated archive links in first-seen order. A card page
// that fails to fetch or parse is skipped; only the author page itself
// is fatal.
func (c *Collector) Run(ctx context.Context) ([]ArchiveLink, error) {
	c.logger.Info("Fetching author page", zap.String("url", c.authorURL))
	page, err := c.fetcher.Fetch(ctx, c.authorURL)
	if err != nil {
		metrics.FetchFailed("author")
		return nil, fmt.Errorf("fetch author page %s: %w", c.authorURL, err)
	}
	metrics.PageFetched(page.StatusCode)

	html, err := fetch.DecodeHTML(page, c.pageEncoding)
	if err != nil {
		return nil, err
	}
	works, err := CollectWorkLinks(html, c.base)
	if err != nil {
		return nil, err
	}
	c.logger.Info("Found work card pages", zap.Int("count", len(works)))

	var all []ArchiveLink
	for i, work := range works {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.pauser.Pause(ctx, c.delay)

		cardPage, err := c.fetcher.Fetch(ctx, work.CardURL)
		if err != nil {
			c.logger.Error("Failed to fetch card page",
				zap.String("url", work.CardURL),
				zap.Error(err),
			)
			metrics.FetchFailed("card")
			continue
		}
		metrics.PageFetched(cardPage.StatusCode)

		cardHTML, err := fetch.DecodeHTML(cardPage, c.pageEncoding)
		if err != nil {
			c.logger.Error("Failed to decode card page",
				zap.String("url", work.CardURL),
				zap.Error(err),
			)
			continue
		}
		cardURL, err := url.Parse(work.CardURL)
		if err != nil {
			c.logger.Error("Skipping unparsable card URL", zap.String("url", work.CardURL))
			continue
		}
		archives, err := CollectArchiveLinks(cardHTML, cardURL)
		if err != nil {
			c.logger.Error("Failed to scan card page",
				zap.String("url", work.CardURL),
				zap.Error(err),
			)
			continue
		}
		for _, u := range archives {
			all = append(all, ArchiveLink{Title: work.Title, URL: u})
		}
		c.logger.Info("Scanned card page",
			zap.Int("index", i+1),
			zap.Int("total", len(works)),
			zap.String("title", work.Title),
			zap.Int("archives", len(archives)),
		)
	}

	unique := dedupe(all)
	c.logger.Info("Collected unique archive links", zap.Int("count", len(unique)))
	return unique, nil
}

// dedupe keeps the first occurrence of every archive URL.
func dedupe(links []ArchiveLink) []ArchiveLink {
	seen := make(map[string]struct{}, len(links))
	out := make([]ArchiveLink, 0, len(links))
	for _, l := range links {
		if _, dup := seen[l.URL]; dup {
			continue
		}
		seen[l.URL] = struct{}{}
		out = append(out, l)
	}
	return out
}
