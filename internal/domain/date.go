package domain

import (
	"errors"
	"time"
)

// DateLayout is the canonical calendar date form used for deadlines.
const DateLayout = "2006-01-02"

// Date is a civil calendar date in YYYY-MM-DD form, without a time zone.
// The empty string means "no date set". The ISO form makes lexicographic
// comparison equivalent to chronological comparison, which the stores rely
// on for overdue and due-on queries.
type Date string

// Date validation errors
var (
	// ErrInvalidDate is returned when a date string is not a valid
	// YYYY-MM-DD calendar date.
	ErrInvalidDate = errors.New("date must be a valid YYYY-MM-DD calendar date")

	// ErrPastDate is returned when a deadline earlier than today is supplied
	// on a path that normalizes dates (postponement, quick-pick edits).
	ErrPastDate = errors.New("deadline cannot be earlier than today")
)

// ParseDate validates s as a canonical YYYY-MM-DD date and returns it as a
// Date. Returns ErrInvalidDate if s does not round-trip through DateLayout.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil || t.Format(DateLayout) != s {
		return "", ErrInvalidDate
	}
	return Date(s), nil
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// Before reports whether d is strictly earlier than other.
// Both dates must be canonical; empty dates compare as earliest.
func (d Date) Before(other Date) bool {
	return string(d) < string(other)
}

// IsZero reports whether no date is set.
func (d Date) IsZero() bool {
	return d == ""
}

// Time returns the date at midnight in the given location.
// Returns the zero time for an unset or malformed date.
func (d Date) Time(loc *time.Location) time.Time {
	if d.IsZero() {
		return time.Time{}
	}
	t, err := time.ParseInLocation(DateLayout, string(d), loc)
	if err != nil {
		return time.Time{}
	}
	return t
}
