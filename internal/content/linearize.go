// Package content turns a post's DOM subtree into an ordered sequence
// of typed segments, with layered recovery passes for images the
// structured walk misses.
package content

import (
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/caesarw/pixnet-crawler/internal/blog"
)

// placeholderLabel names images whose markup carries no title or alt.
const placeholderLabel = "image"

// walker accumulates segments and the first-seen-order deduplicated
// link/image summaries during one linearization pass.
type walker struct {
	segments []blog.Segment
	links    []blog.Reference
	images   []blog.Reference
	seenLink map[string]bool
	seenImg  map[string]bool
}

// Linearize walks each direct child of root in document order and
// applies a strict priority policy per child subtree: images anywhere
// in the subtree win, else a single link, else stripped text, else
// recurse to unwrap empty structure. Exactly one terminal decision is
// made per visited subtree.
func Linearize(root *goquery.Selection) ([]blog.Segment, []blog.Reference, []blog.Reference) {
	w := &walker{
		seenLink: make(map[string]bool),
		seenImg:  make(map[string]bool),
	}
	for _, node := range root.Nodes {
		w.walkChildren(node)
	}
	return w.segments, w.links, w.images
}

func (w *walker) walkChildren(parent *html.Node) {
	for child := parent.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case html.TextNode:
			if text := strings.TrimSpace(child.Data); text != "" {
				w.segments = append(w.segments, blog.Segment{Kind: blog.SegmentText, Body: text})
			}
		case html.ElementNode:
			w.visitSubtree(child)
		}
	}
}

// visitSubtree applies the priority policy to one element subtree.
func (w *walker) visitSubtree(node *html.Node) {
	if imgs := collectImages(node); len(imgs) > 0 {
		for _, img := range imgs {
			w.emitImage(img)
		}
		return
	}

	if link := findLink(node); link != nil {
		w.emitLink(node, link)
		return
	}

	if text := strings.TrimSpace(nodeText(node)); text != "" {
		w.segments = append(w.segments, blog.Segment{Kind: blog.SegmentText, Body: text})
		return
	}

	// Empty wrapper: unwrap without emitting anything for it.
	w.walkChildren(node)
}

func (w *walker) emitImage(img *html.Node) {
	src := attr(img, "src")
	if src == "" {
		return
	}
	label := imageLabel(attr(img, "title"), attr(img, "alt"), src)
	w.segments = append(w.segments, blog.Segment{Kind: blog.SegmentImage, Body: label, URL: src})
	if !w.seenImg[src] {
		w.seenImg[src] = true
		w.images = append(w.images, blog.Reference{URL: src, Label: label})
	}
}

func (w *walker) emitLink(subtree, link *html.Node) {
	href := attr(link, "href")
	label := strings.TrimSpace(nodeText(subtree))
	if label == "" {
		label = strings.TrimSpace(nodeText(link))
	}
	if label == "" {
		label = href
	}
	w.segments = append(w.segments, blog.Segment{Kind: blog.SegmentLink, Body: label, URL: href})
	if !w.seenLink[href] {
		w.seenLink[href] = true
		w.links = append(w.links, blog.Reference{URL: href, Label: label})
	}
}

// collectImages returns all img elements in the subtree rooted at node
// (node included), in document order.
func collectImages(node *html.Node) []*html.Node {
	var imgs []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "img" {
			imgs = append(imgs, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return imgs
}

// findLink returns the first anchor with an href in the subtree rooted
// at node (node included), or nil.
func findLink(node *html.Node) *html.Node {
	if node.Type == html.ElementNode && node.Data == "a" && attr(node, "href") != "" {
		return node
	}
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if found := findLink(c); found != nil {
			return found
		}
	}
	return nil
}

func nodeText(node *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return b.String()
}

func attr(node *html.Node, name string) string {
	for _, a := range node.Attr {
		if a.Key == name {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// imageLabel picks title, then alt, then a placeholder, and appends the
// file extension reconstructed from the URL path when the label lacks one.
func imageLabel(title, alt, src string) string {
	label := title
	if label == "" {
		label = alt
	}
	if label == "" {
		label = placeholderLabel
	}
	if ext := urlExtension(src); ext != "" && !strings.EqualFold(path.Ext(label), ext) {
		label += ext
	}
	return label
}

func urlExtension(src string) string {
	u, err := url.Parse(src)
	if err != nil {
		return ""
	}
	return path.Ext(u.Path)
}
