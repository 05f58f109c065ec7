package validate

import (
	"strings"
	"time"
)

// dateFormats are tried in order. The first is the preferred ISO form;
// the rest cover the regional layouts extraction commonly produces.
var dateFormats = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"2006/01/02",
}

// ParseDate parses an extracted date string leniently. Unparseable input
// is reported as absent (ok == false), never as an error: a garbled date
// suppresses the date rules instead of producing false findings.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// truncateToDay drops the time-of-day component so day arithmetic works
// on calendar days regardless of the clock's wall time.
func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the whole calendar days from a to b (negative when
// b is before a).
func daysBetween(a, b time.Time) int {
	return int(truncateToDay(b).Sub(truncateToDay(a)).Hours() / 24)
}
