// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package events

import "time"

// Boundary predicates over the half-open interval (from, to]. Callers
// guarantee to.After(from). Both instants are interpreted in loc.
//
// Floors are built with time.Date rather than Truncate so that zones with
// non-hour offsets and DST transitions get wall-clock boundaries.

func floorHour(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc)
}

func floorDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func newHour(from, to time.Time, loc *time.Location) bool {
	return !floorHour(from, loc).Equal(floorHour(to, loc))
}

func newDay(from, to time.Time, loc *time.Location) bool {
	return !floorDay(from, loc).Equal(floorDay(to, loc))
}

func newMonth(from, to time.Time, loc *time.Location) bool {
	f, t := from.In(loc), to.In(loc)
	return f.Year() != t.Year() || f.Month() != t.Month()
}

func newYear(from, to time.Time, loc *time.Location) bool {
	return from.In(loc).Year() != to.In(loc).Year()
}

// noonCrossed reports whether a 12:00:00 instant lies in (from, to].
func noonCrossed(from, to time.Time, loc *time.Location) bool {
	t := to.In(loc)
	noon := time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, loc)
	if noon.After(t) {
		noon = time.Date(t.Year(), t.Month(), t.Day()-1, 12, 0, 0, 0, loc)
	}
	return noon.After(from)
}

// mondayMidnightCrossed reports whether a Monday 00:00:00 instant lies in (from, to].
// This is both the end of one week and the start of the next.
func mondayMidnightCrossed(from, to time.Time, loc *time.Location) bool {
	t := to.In(loc)
	back := (int(t.Weekday()) - int(time.Monday) + 7) % 7
	monday := time.Date(t.Year(), t.Month(), t.Day()-back, 0, 0, 0, 0, loc)
	return monday.After(from)
}
