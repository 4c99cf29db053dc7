// Package export renders crawled posts to per-post Markdown directories
// and optionally downloads their images alongside.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kennygrant/sanitize"
	"go.uber.org/zap"

	"github.com/caesarw/pixnet-crawler/internal/blog"
	"github.com/caesarw/pixnet-crawler/internal/crawl"
)

// Config controls export behavior.
type Config struct {
	OutputDir      string
	DownloadImages bool
}

// Exporter writes posts to disk. The fetcher is only used when image
// downloading is enabled.
type Exporter struct {
	cfg     Config
	fetcher crawl.Fetcher
	logger  *zap.Logger
}

// New builds an Exporter.
func New(cfg Config, fetcher crawl.Fetcher, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{cfg: cfg, fetcher: fetcher, logger: logger}
}

// Export writes one post: a directory named by published date,
// sanitized title, and the post's run-unique index, containing index.md
// plus downloaded images when enabled. Returns the directory path. The
// index suffix keeps same-day posts with colliding sanitized titles in
// separate directories.
func (e *Exporter) Export(ctx context.Context, post blog.Post) (string, error) {
	dirName := fmt.Sprintf("%s-%s-%d",
		post.Metadata.PublishedAt.Format("2006-01-02"),
		sanitize.BaseName(post.Metadata.Title),
		post.Metadata.Index,
	)
	dir := filepath.Join(e.cfg.OutputDir, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create post dir: %w", err)
	}

	localNames := map[string]string{}
	if e.cfg.DownloadImages {
		localNames = e.downloadImages(ctx, dir, post.Images)
	}

	markdown := renderMarkdown(post, localNames)
	mdPath := filepath.Join(dir, "index.md")
	if err := os.WriteFile(mdPath, []byte(markdown), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", mdPath, err)
	}
	return dir, nil
}

// downloadImages fetches each image next to the Markdown file and maps
// remote URL to local filename. A failed download keeps the remote URL.
func (e *Exporter) downloadImages(ctx context.Context, dir string, images []blog.Reference) map[string]string {
	local := make(map[string]string, len(images))
	for i, img := range images {
		name := localImageName(img, i)
		res := e.fetcher.Fetch(ctx, img.URL)
		if !res.OK() {
			e.logger.Warn("image download failed",
				zap.String("url", img.URL),
				zap.String("class", string(res.Class)),
			)
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, res.Body, 0o644); err != nil {
			e.logger.Warn("image write failed", zap.String("path", path), zap.Error(err))
			continue
		}
		local[img.URL] = name
	}
	return local
}

// renderMarkdown lays the post out as: title heading, origin link,
// each segment in order, then a references block with every link and
// image definition.
func renderMarkdown(post blog.Post, localNames map[string]string) string {
	linkRefs := referenceIDs(post.Links, "link")
	imageRefs := referenceIDs(post.Images, "image")

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", post.Metadata.Title)
	fmt.Fprintf(&b, "[Source](%s)\n\n", post.Metadata.URL)

	for _, seg := range post.Content {
		switch seg.Kind {
		case blog.SegmentText:
			fmt.Fprintf(&b, "%s\n\n", seg.Body)
		case blog.SegmentLink:
			fmt.Fprintf(&b, "[%s][%s]\n\n", seg.Body, linkRefs[seg.URL])
		case blog.SegmentImage:
			fmt.Fprintf(&b, "![%s][%s]\n\n", seg.Body, imageRefs[seg.URL])
		}
	}

	if len(post.Links)+len(post.Images) > 0 {
		b.WriteString("---\n\n")
		for _, ref := range post.Links {
			fmt.Fprintf(&b, "[%s]: %s\n", linkRefs[ref.URL], ref.URL)
		}
		for _, ref := range post.Images {
			target := ref.URL
			if name, ok := localNames[ref.URL]; ok {
				target = name
			}
			fmt.Fprintf(&b, "[%s]: %s\n", imageRefs[ref.URL], target)
		}
	}
	return b.String()
}

func referenceIDs(refs []blog.Reference, prefix string) map[string]string {
	ids := make(map[string]string, len(refs))
	for i, ref := range refs {
		ids[ref.URL] = fmt.Sprintf("%s-%d", prefix, i+1)
	}
	return ids
}

// localImageName derives a filesystem-safe filename from the image
// label, keeping the extension the label carries. The index prefix
// keeps same-labeled images from colliding.
func localImageName(img blog.Reference, index int) string {
	name := sanitize.BaseName(strings.TrimSuffix(img.Label, filepath.Ext(img.Label)))
	if name == "" {
		name = "image"
	}
	return fmt.Sprintf("%03d-%s%s", index+1, name, filepath.Ext(img.Label))
}
