package content

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/caesarw/pixnet-crawler/internal/blog"
	"github.com/caesarw/pixnet-crawler/internal/metrics"
)

var (
	imgTagRe    = regexp.MustCompile(`(?i)<img\b[^>]*>`)
	srcAttrRe   = regexp.MustCompile(`(?i)\bsrc\s*=\s*["']([^"']+)["']`)
	titleAttrRe = regexp.MustCompile(`(?i)\btitle\s*=\s*["']([^"']*)["']`)
	altAttrRe   = regexp.MustCompile(`(?i)\balt\s*=\s*["']([^"']*)["']`)
)

// stage is one fallback pass: given the current dedup set it returns
// only images not seen before. Stages never mutate seen themselves so
// each is independently testable.
type stage struct {
	name string
	run  func(seen map[string]bool) []blog.Reference
}

// RecoverImages runs the layered fallback chain for a post whose
// linearization produced zero images. Stages probe progressively wider
// scopes; each runs only if every earlier stage found nothing. seen is
// the shared dedup set (keyed by URL), threaded explicitly so later
// stages cannot re-add an already-found image.
func RecoverImages(doc *goquery.Document, root *goquery.Selection, assetHost string, seen map[string]bool) []blog.Reference {
	rootHTML, _ := goquery.OuterHtml(root)
	docHTML, _ := doc.Html()

	stages := []stage{
		{"content_rescan", func(seen map[string]bool) []blog.Reference {
			return scanSelectionImages(root, "", seen)
		}},
		{"document_asset_scan", func(seen map[string]bool) []blog.Reference {
			return scanSelectionImages(doc.Selection, assetHost, seen)
		}},
		{"content_regex", func(seen map[string]bool) []blog.Reference {
			return scanRawImages(rootHTML, "", seen)
		}},
		{"document_regex", func(seen map[string]bool) []blog.Reference {
			return scanRawImages(docHTML, assetHost, seen)
		}},
	}

	for _, st := range stages {
		found := st.run(seen)
		if len(found) == 0 {
			continue
		}
		for _, ref := range found {
			seen[ref.URL] = true
		}
		metrics.ObserveImagesRecovered(st.name, len(found))
		return found
	}
	return nil
}

// scanSelectionImages collects parsed img elements under sel,
// optionally filtered to URLs containing assetHost.
func scanSelectionImages(sel *goquery.Selection, assetHost string, seen map[string]bool) []blog.Reference {
	var out []blog.Reference
	local := make(map[string]bool)
	sel.Find("img").Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" || seen[src] || local[src] {
			return
		}
		if assetHost != "" && !strings.Contains(src, assetHost) {
			return
		}
		local[src] = true
		out = append(out, blog.Reference{
			URL:   src,
			Label: imageLabel(s.AttrOr("title", ""), s.AttrOr("alt", ""), src),
		})
	})
	return out
}

// scanRawImages extracts img tags from raw HTML by attribute pattern
// matching, recovering markup the structured parser did not expose as
// elements.
func scanRawImages(rawHTML, assetHost string, seen map[string]bool) []blog.Reference {
	var out []blog.Reference
	local := make(map[string]bool)
	for _, tag := range imgTagRe.FindAllString(rawHTML, -1) {
		src := firstGroup(srcAttrRe, tag)
		if src == "" || seen[src] || local[src] {
			continue
		}
		if assetHost != "" && !strings.Contains(src, assetHost) {
			continue
		}
		local[src] = true
		out = append(out, blog.Reference{
			URL:   src,
			Label: imageLabel(firstGroup(titleAttrRe, tag), firstGroup(altAttrRe, tag), src),
		})
	}
	return out
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
