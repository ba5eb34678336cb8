package types

import "time"

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Date truncates t to midnight UTC of its calendar day (in t's own location).
// All billing dates are compared as calendar days, never as instants.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateIn returns the calendar day of t as seen in loc.
func DateIn(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		return Date(t)
	}
	return Date(t.In(loc))
}

// DaysBetween returns the whole number of calendar days from -> to.
// Negative when to is before from.
func DaysBetween(from, to time.Time) int {
	return int(Date(to).Sub(Date(from)).Hours() / 24)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, NormalizeDigits(s))
}

// DatePtr returns a pointer to the calendar day of t.
func DatePtr(t time.Time) *time.Time {
	d := Date(t)
	return &d
}
