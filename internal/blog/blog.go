// Package blog defines the core types shared by the crawl pipeline:
// post metadata, content segments, and the assembled Post record.
package blog

import (
	"sort"
	"time"
)

// Metadata describes a single listed post. Index is zero until the
// pagination crawler's reindex step assigns the final 1-based,
// newest-first position; only then is it meaningful.
type Metadata struct {
	Index       int       `json:"index"`
	PublishedAt time.Time `json:"published_at"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
}

// SegmentKind discriminates the closed set of content segment variants.
type SegmentKind string

const (
	SegmentText  SegmentKind = "text"
	SegmentLink  SegmentKind = "link"
	SegmentImage SegmentKind = "image"
)

// Segment is one element of a post's linearized content. Text segments
// carry no URL; link and image segments carry the href/src plus a
// human-readable label in Body.
type Segment struct {
	Kind SegmentKind `json:"kind"`
	Body string      `json:"body"`
	URL  string      `json:"url,omitempty"`
}

// Reference is a (url, label) pair used by the deduplicated link and
// image summaries.
type Reference struct {
	URL   string `json:"url"`
	Label string `json:"label"`
}

// Post is an immutable structured post: metadata plus the ordered
// content segments and the URL-deduplicated link/image summaries
// derived from them.
type Post struct {
	Metadata Metadata    `json:"metadata"`
	Content  []Segment   `json:"content"`
	Links    []Reference `json:"links"`
	Images   []Reference `json:"images"`
}

// ListingSelectors locates post metadata inside a listing page.
type ListingSelectors struct {
	PostContainer string
	Title         string
	PublishedAt   string
	PostURL       string
}

// PostSelectors locates post content. ContentContainers is an ordered
// candidate list; the first selector matching a node wins. AssetHost is
// the substring that identifies the platform's image CDN, used by the
// document-wide fallback recovery stages.
type PostSelectors struct {
	ContentContainers []string
	AssetHost         string
}

// SortAndReindex orders metadata newest-first (stable on ties) and
// assigns dense indexes 1..N starting at the newest entry. This is the
// only place Index values are established.
func SortAndReindex(metas []Metadata) []Metadata {
	out := make([]Metadata, len(metas))
	copy(out, metas)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	for i := range out {
		out[i].Index = i + 1
	}
	return out
}
