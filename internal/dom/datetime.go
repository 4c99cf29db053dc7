package dom

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// The platform expresses its localized timestamps in Taipei civil time.
var taipei = time.FixedZone("UTC+8", 8*60*60)

// Compact localized form: <month>月<day>週<weekday-char><year><hour>:<minute>,
// e.g. "12月06週六202517:12".
var compactRe = regexp.MustCompile(`^(\d{1,2})月(\d{1,2})週.(\d{4})(\d{2}):(\d{2})$`)

var layouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses the heterogeneous date strings found in the
// platform's markup. Attempts, in order: ISO-8601 (a literal Z suffix
// reads as UTC), "YYYY-MM-DD HH:MM:SS", "YYYY-MM-DD" (midnight), then
// the compact localized form interpreted in UTC+8. Values whose numeric
// fields do not form a valid calendar date report ok=false.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}

	m := compactRe.FindStringSubmatch(raw)
	if m == nil {
		return time.Time{}, false
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])

	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, taipei)
	// time.Date normalizes out-of-range fields (day 32 rolls into the
	// next month); reject anything that did not survive unchanged.
	if int(t.Month()) != month || t.Day() != day || t.Hour() != hour || t.Minute() != minute {
		return time.Time{}, false
	}
	return t, true
}
