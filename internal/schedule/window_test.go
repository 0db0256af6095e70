package schedule

import (
	"testing"
	"time"
)

// fixed zone without DST surprises for deterministic cases
var testLoc = time.FixedZone("MSK", 3*60*60)

func at(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, testLoc)
}

func TestInWindow(t *testing.T) {
	w := NewWindow(testLoc, 0, 0, -1) // defaults: 9-18, 30 min grace

	cases := []struct {
		name string
		t    time.Time
		want bool
	}{
		// 2026-08-24 is a Monday
		{"monday morning open", at(2026, time.August, 24, 9, 0), true},
		{"monday just before open", at(2026, time.August, 24, 8, 59), false},
		{"monday midday", at(2026, time.August, 24, 13, 0), true},
		{"monday at 18:00", at(2026, time.August, 24, 18, 0), true},
		{"monday inside grace", at(2026, time.August, 24, 18, 30), true},
		{"monday past grace", at(2026, time.August, 24, 18, 31), false},
		{"saturday midday", at(2026, time.August, 29, 12, 0), false},
		{"sunday midday", at(2026, time.August, 30, 12, 0), false},
		{"friday inside grace", at(2026, time.August, 28, 18, 15), true},
	}
	for _, tc := range cases {
		if got := w.InWindow(tc.t); got != tc.want {
			t.Errorf("%s: InWindow(%v) = %v, want %v", tc.name, tc.t, got, tc.want)
		}
	}
}

func TestNextBusinessMorning(t *testing.T) {
	w := NewWindow(testLoc, 0, 0, -1)

	cases := []struct {
		name string
		from time.Time
		want time.Time
	}{
		// Before the window opens, the same morning qualifies
		{"monday predawn", at(2026, time.August, 24, 6, 0), at(2026, time.August, 24, 9, 0)},
		// During the day, the next morning is tomorrow
		{"monday midday", at(2026, time.August, 24, 13, 0), at(2026, time.August, 25, 9, 0)},
		// Friday evening rolls over the weekend to Monday
		{"friday evening", at(2026, time.August, 28, 19, 0), at(2026, time.August, 31, 9, 0)},
		// Saturday and Sunday both land on Monday morning
		{"saturday", at(2026, time.August, 29, 12, 0), at(2026, time.August, 31, 9, 0)},
		{"sunday", at(2026, time.August, 30, 23, 0), at(2026, time.August, 31, 9, 0)},
		// Exactly at opening, the next morning is tomorrow (strictly after)
		{"monday at opening", at(2026, time.August, 24, 9, 0), at(2026, time.August, 25, 9, 0)},
	}
	for _, tc := range cases {
		got := w.NextBusinessMorning(tc.from)
		if !got.Equal(tc.want) {
			t.Errorf("%s: NextBusinessMorning(%v) = %v, want %v", tc.name, tc.from, got, tc.want)
		}
		if !got.After(tc.from.UTC()) && !got.After(tc.from) {
			t.Errorf("%s: result %v is not after input %v", tc.name, got, tc.from)
		}
	}
}

func TestNextBusinessMorningIsUTC(t *testing.T) {
	w := NewWindow(testLoc, 0, 0, -1)
	got := w.NextBusinessMorning(at(2026, time.August, 24, 13, 0))
	if got.Location() != time.UTC {
		t.Errorf("Expected UTC instant, got location %v", got.Location())
	}
	// 09:00 MSK is 06:00 UTC
	if got.Hour() != 6 {
		t.Errorf("Expected 06:00 UTC, got %v", got)
	}
}

func TestToday(t *testing.T) {
	w := NewWindow(testLoc, 0, 0, -1)
	// 23:30 UTC on the 24th is already the 25th in MSK
	utc := time.Date(2026, time.August, 24, 23, 30, 0, 0, time.UTC)
	if got := w.Today(utc); got != "2026-08-25" {
		t.Errorf("Expected 2026-08-25, got %s", got)
	}
}

func TestCustomBounds(t *testing.T) {
	w := NewWindow(testLoc, 8, 20, 0)
	if !w.InWindow(at(2026, time.August, 24, 8, 0)) {
		t.Error("Expected 08:00 inside a custom 8-20 window")
	}
	if w.InWindow(at(2026, time.August, 24, 20, 1)) {
		t.Error("Expected 20:01 outside a zero-grace 8-20 window")
	}
}
