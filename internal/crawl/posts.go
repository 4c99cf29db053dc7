package crawl

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/caesarw/pixnet-crawler/internal/blog"
	"github.com/caesarw/pixnet-crawler/internal/content"
	"github.com/caesarw/pixnet-crawler/internal/metrics"
)

// Renderer obtains a fully-settled DOM snapshot for pages that need
// script execution. URL in, HTML out; everything else is its business.
type Renderer interface {
	Snapshot(ctx context.Context, rawURL string) (string, error)
}

// Posts crawls individual post pages and assembles structured posts.
type Posts struct {
	fetcher   Fetcher
	renderer  Renderer
	selectors blog.PostSelectors
	logger    *zap.Logger
}

// NewPosts builds a post crawler. renderer may be nil; posts are then
// fetched statically.
func NewPosts(fetcher Fetcher, renderer Renderer, selectors blog.PostSelectors, logger *zap.Logger) *Posts {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Posts{fetcher: fetcher, renderer: renderer, selectors: selectors, logger: logger}
}

// CrawlCollected crawls every metadata entry and returns the successful
// posts in input order. Per-item failures are logged and omitted.
func (c *Posts) CrawlCollected(ctx context.Context, metas []blog.Metadata) []blog.Post {
	results := make([]*blog.Post, len(metas))
	var wg sync.WaitGroup
	for i, meta := range metas {
		wg.Add(1)
		go func(i int, meta blog.Metadata) {
			defer wg.Done()
			if post, ok := c.crawlOne(ctx, meta); ok {
				results[i] = &post
			}
		}(i, meta)
	}
	wg.Wait()

	posts := make([]blog.Post, 0, len(metas))
	for _, post := range results {
		if post != nil {
			posts = append(posts, *post)
		}
	}
	return posts
}

// CrawlStream crawls every metadata entry and yields posts in
// completion order. No ordering guarantee relative to input; consumers
// needing order re-sort by Metadata.Index. The channel closes once all
// items have finished. A consumer abandoning the stream must cancel
// ctx; sends select on it so producers never block past cancellation.
func (c *Posts) CrawlStream(ctx context.Context, metas []blog.Metadata) <-chan blog.Post {
	out := make(chan blog.Post)
	var wg sync.WaitGroup
	for _, meta := range metas {
		wg.Add(1)
		go func(meta blog.Metadata) {
			defer wg.Done()
			if post, ok := c.crawlOne(ctx, meta); ok {
				select {
				case out <- post:
				case <-ctx.Done():
				}
			}
		}(meta)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// crawlOne fetches, parses, and linearizes a single post. Any failure,
// including a panic from a malformed document, stays scoped to this item.
func (c *Posts) crawlOne(ctx context.Context, meta blog.Metadata) (post blog.Post, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("post crawl panicked", zap.String("url", meta.URL), zap.Any("panic", r))
			metrics.ObservePost("failed")
			ok = false
		}
	}()

	html, err := c.documentHTML(ctx, meta.URL)
	if err != nil {
		c.logger.Error("post fetch failed", zap.String("url", meta.URL), zap.Error(err))
		metrics.ObservePost("failed")
		return blog.Post{}, false
	}

	post, err = c.parsePost(html, meta)
	if err != nil {
		c.logger.Error("post parse failed", zap.String("url", meta.URL), zap.Error(err))
		metrics.ObservePost("failed")
		return blog.Post{}, false
	}
	metrics.ObservePost("ok")
	return post, true
}

// documentHTML prefers a rendered snapshot when a renderer is
// configured, falling back to a plain fetch if rendering fails.
func (c *Posts) documentHTML(ctx context.Context, rawURL string) (string, error) {
	if c.renderer != nil {
		html, err := c.renderer.Snapshot(ctx, rawURL)
		if err == nil {
			return html, nil
		}
		c.logger.Warn("render failed, falling back to plain fetch", zap.String("url", rawURL), zap.Error(err))
	}

	res := c.fetcher.Fetch(ctx, rawURL)
	if !res.OK() {
		return "", fmt.Errorf("fetch %s: class=%s status=%d attempts=%d: %w",
			rawURL, res.Class, res.StatusCode, res.Attempts, res.Err)
	}
	return string(res.Body), nil
}

func (c *Posts) parsePost(html string, meta blog.Metadata) (blog.Post, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return blog.Post{}, fmt.Errorf("parse post html: %w", err)
	}

	root, found := c.contentRoot(doc)
	if !found {
		return blog.Post{}, fmt.Errorf("no content container matched (%d candidates)", len(c.selectors.ContentContainers))
	}

	// Hydrated pages serve an empty shell; when the selected root has
	// no images, probe the script payloads for a more complete fragment.
	if root.Find("img").Length() == 0 {
		if hydrated, ok := content.RecoverHydratedRoot(doc, c.selectors.ContentContainers); ok {
			c.logger.Debug("substituted hydration payload as content root", zap.String("url", meta.URL))
			root = hydrated
		}
	}

	segments, links, images := content.Linearize(root)

	if len(images) == 0 {
		seen := make(map[string]bool)
		recovered := content.RecoverImages(doc, root, c.selectors.AssetHost, seen)
		if len(recovered) > 0 {
			c.logger.Debug("fallback chain recovered images",
				zap.String("url", meta.URL),
				zap.Int("count", len(recovered)),
			)
			images = append(images, recovered...)
		}
	}

	return blog.Post{
		Metadata: meta,
		Content:  segments,
		Links:    links,
		Images:   images,
	}, nil
}

// contentRoot returns the first candidate selector that matches a node.
func (c *Posts) contentRoot(doc *goquery.Document) (*goquery.Selection, bool) {
	for _, selector := range c.selectors.ContentContainers {
		if root := doc.Find(selector).First(); root.Length() > 0 {
			return root, true
		}
	}
	return nil, false
}
