// Package dom provides the atomic read primitives used by both
// crawlers: selector-scoped text, URL, and timestamp extraction.
package dom

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Text returns the stripped text of the first node matching selector,
// or "" when nothing matches.
func Text(root *goquery.Selection, selector string) string {
	target := root.Find(selector).First()
	if target.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(target.Text())
}

// URL returns the href attribute of the first node matching selector,
// or "" when the node or attribute is absent.
func URL(root *goquery.Selection, selector string) string {
	target := root.Find(selector).First()
	if target.Length() == 0 {
		return ""
	}
	href, _ := target.Attr("href")
	return strings.TrimSpace(href)
}

// Datetime extracts a timestamp from the first node matching selector.
// Source precedence: the machine-readable datetime attribute (<time>
// tags), then the content attribute (meta tags), then visible text.
// The first non-empty source is parsed; an unparseable value reports
// ok=false rather than falling through to later sources.
func Datetime(root *goquery.Selection, selector string) (time.Time, bool) {
	target := root.Find(selector).First()
	if target.Length() == 0 {
		return time.Time{}, false
	}

	raw, _ := target.Attr("datetime")
	if raw == "" {
		raw, _ = target.Attr("content")
	}
	if raw == "" {
		raw = strings.TrimSpace(target.Text())
	}
	if raw == "" {
		return time.Time{}, false
	}
	return ParseTimestamp(raw)
}
