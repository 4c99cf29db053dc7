package content

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func parseDoc(t *testing.T, html string) (*goquery.Document, *goquery.Selection) {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	root := doc.Find("#content")
	require.Equal(t, 1, root.Length())
	return doc, root
}

func TestRecoverImagesContentRescan(t *testing.T) {
	t.Parallel()

	doc, root := parseDoc(t, `<html><body>
		<div id="content"><p><img alt="inline" src="https://pimg.tw/inline.jpg"></p></div>
	</body></html>`)

	seen := make(map[string]bool)
	found := RecoverImages(doc, root, "pimg.tw", seen)

	require.Len(t, found, 1)
	require.Equal(t, "https://pimg.tw/inline.jpg", found[0].URL)
	require.Equal(t, "inline.jpg", found[0].Label)
	require.True(t, seen["https://pimg.tw/inline.jpg"])
}

func TestRecoverImagesDocumentAssetScan(t *testing.T) {
	t.Parallel()

	doc, root := parseDoc(t, `<html><body>
		<div id="content"><p>text only</p></div>
		<div id="sidebar">
			<img src="https://pimg.tw/outside.jpg" alt="outside">
			<img src="https://ads.example.com/banner.png" alt="ad">
		</div>
	</body></html>`)

	found := RecoverImages(doc, root, "pimg.tw", make(map[string]bool))

	require.Len(t, found, 1)
	require.Equal(t, "https://pimg.tw/outside.jpg", found[0].URL)
}

func TestRecoverImagesRegexFromComment(t *testing.T) {
	t.Parallel()

	// The img exists only inside a comment; the structured parser never
	// exposes it as an element, so only the regex stage can see it.
	doc, root := parseDoc(t, `<html><body>
		<div id="content"><p>text</p><!-- <img src="https://pimg.tw/hidden.jpg" alt="hidden"> --></div>
	</body></html>`)

	found := RecoverImages(doc, root, "pimg.tw", make(map[string]bool))

	require.Len(t, found, 1)
	require.Equal(t, "https://pimg.tw/hidden.jpg", found[0].URL)
	require.Equal(t, "hidden.jpg", found[0].Label)
}

func TestRecoverImagesDocumentRegexLastResort(t *testing.T) {
	t.Parallel()

	doc, root := parseDoc(t, `<html><body>
		<div id="content"><p>text</p></div>
		<script>var tpl = '<img src="https://pimg.tw/scripted.jpg" title="scripted">';</script>
	</body></html>`)

	found := RecoverImages(doc, root, "pimg.tw", make(map[string]bool))

	require.Len(t, found, 1)
	require.Equal(t, "https://pimg.tw/scripted.jpg", found[0].URL)
	require.Equal(t, "scripted.jpg", found[0].Label)
}

func TestRecoverImagesRespectsSeenSet(t *testing.T) {
	t.Parallel()

	doc, root := parseDoc(t, `<html><body>
		<div id="content"><img src="https://pimg.tw/known.jpg"></div>
	</body></html>`)

	seen := map[string]bool{"https://pimg.tw/known.jpg": true}
	found := RecoverImages(doc, root, "pimg.tw", seen)

	require.Empty(t, found)
}

func TestRecoverImagesStopsAtFirstProductiveStage(t *testing.T) {
	t.Parallel()

	// Content holds a real img element and the document holds another
	// one outside; only the first stage's find is returned.
	doc, root := parseDoc(t, `<html><body>
		<div id="content"><img src="https://pimg.tw/first.jpg"></div>
		<img src="https://pimg.tw/second.jpg">
	</body></html>`)

	found := RecoverImages(doc, root, "pimg.tw", make(map[string]bool))

	require.Len(t, found, 1)
	require.Equal(t, "https://pimg.tw/first.jpg", found[0].URL)
}

func TestRecoverImagesNothingAnywhere(t *testing.T) {
	t.Parallel()

	doc, root := parseDoc(t, `<html><body><div id="content"><p>just text</p></div></body></html>`)

	require.Empty(t, RecoverImages(doc, root, "pimg.tw", make(map[string]bool)))
}
