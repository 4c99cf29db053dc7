package content

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Client-hydration frameworks push serialized HTML fragments through an
// inline script queue; the fragment arrives as an escaped string
// literal inside the push call.
var hydrationPushRe = regexp.MustCompile(`\.push\(\s*\[\s*1\s*,\s*("(?:[^"\\]|\\.)*")\s*\]\s*\)`)

// Tags whose presence marks a fragment as renderable post content.
var contentTagRe = regexp.MustCompile(`(?i)<(?:p|div|img|figure|article)\b`)

var hydrationUnescaper = strings.NewReplacer(
	`\"`, `"`,
	`\\`, `\`,
	`\n`, "\n",
	`\t`, "\t",
	`\/`, "/",
	"\\u003c", "<",
	"\\u003e", ">",
	"\\u0026", "&",
)

// RecoverHydratedRoot scans the document's inline scripts for hydration
// payloads carrying an embedded HTML fragment. Among candidates with
// recognizable content tags the longest is kept (longer implies more
// complete), parsed, and returned as a substitute content root. The
// candidate selectors are tried inside the fragment first; failing
// that, the fragment's whole body is the root.
func RecoverHydratedRoot(doc *goquery.Document, contentSelectors []string) (*goquery.Selection, bool) {
	var best string
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		for _, m := range hydrationPushRe.FindAllStringSubmatch(s.Text(), -1) {
			fragment := unescapeFragment(m[1])
			if fragment == "" || !contentTagRe.MatchString(fragment) {
				continue
			}
			if len(fragment) > len(best) {
				best = fragment
			}
		}
	})
	if best == "" {
		return nil, false
	}

	fragDoc, err := goquery.NewDocumentFromReader(strings.NewReader(best))
	if err != nil {
		return nil, false
	}
	for _, selector := range contentSelectors {
		if root := fragDoc.Find(selector).First(); root.Length() > 0 {
			return root, true
		}
	}
	body := fragDoc.Find("body").First()
	if body.Length() == 0 {
		return nil, false
	}
	return body, true
}

// unescapeFragment turns the quoted literal captured from the script
// back into HTML. JS string escapes are close enough to Go's that
// strconv.Unquote handles the common case; the replacer covers
// payloads it rejects.
func unescapeFragment(quoted string) string {
	if s, err := strconv.Unquote(quoted); err == nil {
		return s
	}
	return hydrationUnescaper.Replace(strings.Trim(quoted, `"`))
}
