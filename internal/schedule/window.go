// Package schedule implements the business window clock: pure calendar
// predicates that decide whether a notification may go out now or must wait
// for the next business morning.
package schedule

import "time"

// Default business window bounds.
const (
	// DefaultWorkStartHour is the local hour the business window opens.
	DefaultWorkStartHour = 9

	// DefaultWorkEndHour is the local hour the business window nominally closes.
	DefaultWorkEndHour = 18

	// DefaultGraceMinutes extends the window past the closing hour so the
	// end-of-day digest (and anything queued right behind it) still goes out.
	DefaultGraceMinutes = 30
)

// Window evaluates the business-hours rules in a fixed local time zone.
// The zero bounds are replaced with the defaults by NewWindow.
type Window struct {
	loc          *time.Location
	startHour    int
	endHour      int
	graceMinutes int
}

// NewWindow creates a Window for the given location and bounds. Zero or
// negative hours fall back to the 09:00-18:00 (+30 min grace) defaults.
func NewWindow(loc *time.Location, startHour, endHour, graceMinutes int) *Window {
	if loc == nil {
		loc = time.UTC
	}
	if startHour <= 0 {
		startHour = DefaultWorkStartHour
	}
	if endHour <= 0 {
		endHour = DefaultWorkEndHour
	}
	if graceMinutes < 0 {
		graceMinutes = DefaultGraceMinutes
	}
	return &Window{
		loc:          loc,
		startHour:    startHour,
		endHour:      endHour,
		graceMinutes: graceMinutes,
	}
}

// Location returns the window's local time zone.
func (w *Window) Location() *time.Location {
	return w.loc
}

// InWindow reports whether t falls inside the business window: a weekday,
// at or after the start hour, and no later than the end hour plus grace
// (18:30 with defaults).
func (w *Window) InWindow(t time.Time) bool {
	local := t.In(w.loc)

	if !isBusinessDay(local.Weekday()) {
		return false
	}

	if local.Hour() < w.startHour {
		return false
	}

	cutoff := w.graceCutoff(local)
	return !local.After(cutoff)
}

// NextBusinessMorning returns the start of the next business window after
// t, as a UTC instant whose local time is the start hour on a weekday.
// Before the window opens on a business day it is that same morning; past
// the grace cutoff it is the next day's morning, skipping weekends.
func (w *Window) NextBusinessMorning(t time.Time) time.Time {
	local := t.In(w.loc)

	d := time.Date(local.Year(), local.Month(), local.Day(),
		w.startHour, 0, 0, 0, w.loc)
	if local.After(w.graceCutoff(local)) || !local.Before(d) {
		d = d.AddDate(0, 0, 1)
	}

	for !isBusinessDay(d.Weekday()) {
		d = d.AddDate(0, 0, 1)
	}

	return d.UTC()
}

// Today returns the calendar date of t in the window's location, in
// YYYY-MM-DD form.
func (w *Window) Today(t time.Time) string {
	return t.In(w.loc).Format("2006-01-02")
}

// graceCutoff returns the last instant of the window on local's day.
func (w *Window) graceCutoff(local time.Time) time.Time {
	return time.Date(local.Year(), local.Month(), local.Day(),
		w.endHour, w.graceMinutes, 0, 0, w.loc)
}

func isBusinessDay(d time.Weekday) bool {
	return d != time.Saturday && d != time.Sunday
}
