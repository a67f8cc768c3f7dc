package services

import "time"

// DayBoundary returns the half-open interval [start, next) of the calendar day
// containing now, as observed in loc. The next day is computed on the calendar,
// so the interval is 23 or 25 hours long across DST changes.
func DayBoundary(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

func within(t, start, next time.Time) bool {
	return !t.Before(start) && t.Before(next)
}
