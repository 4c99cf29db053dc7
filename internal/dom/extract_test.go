package dom

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func parseFragment(t *testing.T, html string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc.Selection
}

func TestText(t *testing.T) {
	t.Parallel()

	root := parseFragment(t, `<div><h2><a href="/p1">  Post Title  </a></h2><h2><a>Second</a></h2></div>`)
	require.Equal(t, "Post Title", Text(root, "h2 a"))
	require.Equal(t, "", Text(root, ".missing"))
}

func TestURL(t *testing.T) {
	t.Parallel()

	root := parseFragment(t, `<div><a href="https://example.com/p1">go</a><a>bare</a></div>`)
	require.Equal(t, "https://example.com/p1", URL(root, "a"))
	require.Equal(t, "", URL(root, "span"))

	bare := parseFragment(t, `<div><a>bare</a></div>`)
	require.Equal(t, "", URL(bare, "a"))
}

func TestDatetimePrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
		want time.Time
		ok   bool
	}{
		{
			name: "datetime attribute wins",
			html: `<time datetime="2025-12-06T17:12:00Z" content="2020-01-01">visible 2021-01-01</time>`,
			want: time.Date(2025, 12, 6, 17, 12, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "content attribute when no datetime",
			html: `<meta content="2025-12-06"><span>ignored</span>`,
			want: time.Date(2025, 12, 6, 0, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "visible text as last resort",
			html: `<li>2025-12-06 17:12:00</li>`,
			want: time.Date(2025, 12, 6, 17, 12, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "unparseable text",
			html: `<li>three days ago</li>`,
			ok:   false,
		},
		{
			name: "empty node",
			html: `<li></li>`,
			ok:   false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			root := parseFragment(t, "<div>"+tc.html+"</div>")
			got, ok := Datetime(root, "time, meta, li")
			require.Equal(t, tc.ok, ok)
			if tc.ok {
				require.True(t, got.Equal(tc.want), "got %v want %v", got, tc.want)
			}
		})
	}
}

func TestDatetimeMissingNode(t *testing.T) {
	t.Parallel()

	root := parseFragment(t, `<div><p>no time here</p></div>`)
	_, ok := Datetime(root, "time")
	require.False(t, ok)
}
