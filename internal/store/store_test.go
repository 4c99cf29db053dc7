package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/caesarw/pixnet-crawler/internal/blog"
)

func TestMetadataRoundTrip(t *testing.T) {
	t.Parallel()

	utc8 := time.FixedZone("UTC+8", 8*60*60)
	want := []blog.Metadata{
		{Index: 1, PublishedAt: time.Date(2025, 12, 20, 17, 12, 0, 0, utc8), Title: "新手打工度假指南", URL: "https://example.pixnet.net/blog/posts/1"},
		{Index: 2, PublishedAt: time.Date(2025, 12, 6, 9, 0, 0, 0, time.UTC), Title: "second post", URL: "https://example.pixnet.net/blog/posts/2"},
	}

	path := filepath.Join(t.TempDir(), "posts.jsonl")
	require.NoError(t, WriteMetadata(path, want))

	got, err := ReadMetadata(path)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		require.Equal(t, want[i].Index, got[i].Index)
		require.Equal(t, want[i].Title, got[i].Title)
		require.Equal(t, want[i].URL, got[i].URL)
		require.True(t, got[i].PublishedAt.Equal(want[i].PublishedAt),
			"timestamp must survive the RFC3339 round trip")
	}
}

func TestWriteMetadataOneObjectPerLine(t *testing.T) {
	t.Parallel()

	metas := []blog.Metadata{
		{Index: 1, PublishedAt: time.Date(2025, 12, 6, 0, 0, 0, 0, time.UTC), Title: "a", URL: "https://example.com/a"},
		{Index: 2, PublishedAt: time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC), Title: "b", URL: "https://example.com/b"},
	}

	path := filepath.Join(t.TempDir(), "posts.jsonl")
	require.NoError(t, WriteMetadata(path, metas))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], `"index":1`)
	require.Contains(t, lines[0], `"published_at":"2025-12-06T00:00:00Z"`)
}

func TestReadMetadataToleratesBlankLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "posts.jsonl")
	content := `{"index":1,"published_at":"2025-12-06T00:00:00Z","title":"a","url":"https://example.com/a"}` + "\n\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got, err := ReadMetadata(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestReadMetadataMalformedLine(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "posts.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{not json}\n"), 0o644))

	_, err := ReadMetadata(path)
	require.Error(t, err)
}

func TestReadMetadataMissingFile(t *testing.T) {
	t.Parallel()

	_, err := ReadMetadata(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.Error(t, err)
}
