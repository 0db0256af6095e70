package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-02-28")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if d != "2026-02-28" {
		t.Errorf("Expected 2026-02-28, got %s", d)
	}

	invalid := []string{
		"",
		"2026-2-28",    // not zero padded
		"28.02.2026",   // wrong layout
		"2026-02-30",   // impossible day
		"2026-13-01",   // impossible month
		"2026-02-28 ",  // trailing space
		"2026-02-28T0", // trailing garbage
	}
	for _, s := range invalid {
		if _, err := ParseDate(s); !errors.Is(err, ErrInvalidDate) {
			t.Errorf("Expected ErrInvalidDate for %q, got %v", s, err)
		}
	}
}

func TestDateBefore(t *testing.T) {
	// Lexicographic order on the canonical form is chronological order
	if !Date("2026-01-31").Before("2026-02-01") {
		t.Error("Expected 2026-01-31 < 2026-02-01")
	}
	if Date("2026-02-01").Before("2026-02-01") {
		t.Error("Expected a date not to be before itself")
	}
	if !Date("2025-12-31").Before("2026-01-01") {
		t.Error("Expected year boundary to order correctly")
	}
}

func TestDateOfAndTime(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		t.Fatalf("failed to load location: %v", err)
	}

	at := time.Date(2026, 8, 24, 23, 30, 0, 0, loc)
	if got := DateOf(at); got != "2026-08-24" {
		t.Errorf("Expected 2026-08-24, got %s", got)
	}

	d := Date("2026-08-24")
	back := d.Time(loc)
	if back.Year() != 2026 || back.Month() != time.August || back.Day() != 24 {
		t.Errorf("Expected round-trip to 2026-08-24, got %v", back)
	}
	if back.Hour() != 0 || back.Minute() != 0 {
		t.Errorf("Expected midnight, got %v", back)
	}

	if !Date("").Time(time.UTC).IsZero() {
		t.Error("Expected zero time for an unset date")
	}
}
