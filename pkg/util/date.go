package util

import "time"

const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD day. Returns (t, true) if it worked.
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DateIn formats the calendar day of t in loc.
func DateIn(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// NextRun returns the first wall-clock hour:minute in loc strictly after now.
// On DST transitions time.Date normalizes a skipped time forward.
func NextRun(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}
