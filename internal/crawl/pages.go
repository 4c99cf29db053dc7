// Package crawl contains the two crawl drivers: the pagination crawler
// that turns a listing into sorted metadata, and the post crawler that
// turns metadata into structured posts.
package crawl

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/caesarw/pixnet-crawler/internal/blog"
	"github.com/caesarw/pixnet-crawler/internal/dom"
	"github.com/caesarw/pixnet-crawler/internal/fetch"
	"github.com/caesarw/pixnet-crawler/internal/metrics"
)

// Fetcher is the scheduler contract both drivers depend on.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) fetch.Result
}

// Pagination crawls a page-number range of the blog listing and
// produces the globally sorted, reindexed metadata list.
type Pagination struct {
	fetcher   Fetcher
	selectors blog.ListingSelectors
	logger    *zap.Logger
}

// NewPagination builds a pagination crawler.
func NewPagination(fetcher Fetcher, selectors blog.ListingSelectors, logger *zap.Logger) *Pagination {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pagination{fetcher: fetcher, selectors: selectors, logger: logger}
}

// Crawl fetches pages [startPage, endPage] inclusive, extracts metadata
// candidates from each, merges them, and returns the result sorted
// newest-first with dense 1..N indexes. Per-page failures degrade to an
// empty page and never abort the crawl; the fetcher's gate bounds
// concurrency across all in-flight pages.
func (p *Pagination) Crawl(ctx context.Context, baseURL string, startPage, endPage int) ([]blog.Metadata, error) {
	if startPage < 1 || endPage < startPage {
		return nil, fmt.Errorf("invalid page range [%d, %d]", startPage, endPage)
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	pages := make([][]blog.Metadata, endPage-startPage+1)
	var wg sync.WaitGroup
	for page := startPage; page <= endPage; page++ {
		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			pages[page-startPage] = p.crawlPage(ctx, baseURL, page)
		}(page)
	}
	wg.Wait()

	var merged []blog.Metadata
	for _, posts := range pages {
		merged = append(merged, posts...)
	}

	p.logger.Info("listing crawl complete",
		zap.Int("pages", len(pages)),
		zap.Int("posts", len(merged)),
	)
	return blog.SortAndReindex(merged), nil
}

func (p *Pagination) crawlPage(ctx context.Context, baseURL string, page int) []blog.Metadata {
	pageURL, err := buildPageURL(baseURL, page)
	if err != nil {
		p.logger.Error("build page url failed", zap.Int("page", page), zap.Error(err))
		metrics.ObserveListingPage("failed")
		return nil
	}

	res := p.fetcher.Fetch(ctx, pageURL)
	if !res.OK() {
		p.logger.Error("listing page fetch failed",
			zap.String("url", pageURL),
			zap.String("class", string(res.Class)),
			zap.Int("status", res.StatusCode),
			zap.Int("attempts", res.Attempts),
		)
		metrics.ObserveListingPage("failed")
		return nil
	}

	posts, err := p.extractPosts(res.Body)
	if err != nil {
		p.logger.Error("listing page parse failed", zap.String("url", pageURL), zap.Error(err))
		metrics.ObserveListingPage("failed")
		return nil
	}
	metrics.ObserveListingPage("ok")
	p.logger.Debug("listing page done", zap.String("url", pageURL), zap.Int("posts", len(posts)))
	return posts
}

// extractPosts pulls metadata candidates from one listing page. A
// container contributes a candidate only when title, timestamp, and URL
// are all present; partial records are dropped without comment.
func (p *Pagination) extractPosts(body []byte) ([]blog.Metadata, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	var posts []blog.Metadata
	doc.Find(p.selectors.PostContainer).Each(func(_ int, node *goquery.Selection) {
		title := dom.Text(node, p.selectors.Title)
		publishedAt, ok := dom.Datetime(node, p.selectors.PublishedAt)
		postURL := dom.URL(node, p.selectors.PostURL)
		if title == "" || !ok || postURL == "" {
			return
		}
		posts = append(posts, blog.Metadata{
			Title:       title,
			PublishedAt: publishedAt,
			URL:         postURL,
		})
	})
	return posts, nil
}

// buildPageURL rewrites the base URL's page query parameter.
func buildPageURL(baseURL string, page int) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
