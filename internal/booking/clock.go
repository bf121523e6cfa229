package booking

import (
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// ParseDate parses a calendar date and normalizes it to midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// ParseStart combines a date and a wall-clock time into a start timestamp.
func ParseStart(dateStr, clockStr string, loc *time.Location) (date, startAt time.Time, err error) {
	date, err = ParseDate(dateStr, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	c, err := time.ParseInLocation(ClockLayout, clockStr, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	startAt = date.Add(time.Duration(c.Hour())*time.Hour + time.Duration(c.Minute())*time.Minute)
	return date, startAt, nil
}

// Midnight truncates t to the start of its day in loc.
func Midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// SameDate reports whether two times name the same calendar date, each in
// its own location. Dates scanned from the store come back as UTC midnights
// while request dates are parsed in the salon timezone, so the instants
// differ even when the dates agree.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
