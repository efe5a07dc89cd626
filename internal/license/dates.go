package license

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the layout of every date carried inside a payload.
const DateLayout = "2006/01/02"

// Older installs formatted dates with the culture's date separator, so a few
// equivalent layouts are accepted when reading. Writing always uses DateLayout.
var readLayouts = []string{
	DateLayout,
	"2006/1/2",
	"2006-01-02",
	"2006-1-2",
	"2006.01.02",
	"2006.1.2",
}

// Clock returns the current time.
type Clock func() time.Time

// PermanentDeadline returns the sentinel deadline in loc. Deadlines on or
// after it classify a license as permanent.
func PermanentDeadline(loc *time.Location) time.Time {
	return time.Date(2122, time.December, 31, 0, 0, 0, 0, loc)
}

// IsPermanent reports whether deadline is on or after the permanent sentinel.
func IsPermanent(deadline time.Time) bool {
	return !startOfDay(deadline).Before(PermanentDeadline(deadline.Location()))
}

// FormatDate renders t with DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a payload date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range readLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a YYYY/MM/DD date", s)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// addMonths adds n calendar months, clamping the day to the end of the target
// month (Jan 31 + 1 month = Feb 28/29) instead of overflowing into the next.
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, t.Location())
}
