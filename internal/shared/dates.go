package shared

import (
	"fmt"
	"time"
)

// DayLayout is the canonical calendar-day format.
const DayLayout = "2006-01-02"

// Day truncates t to the calendar day it falls on in its own location and
// returns that day as midnight UTC, so days compare and key consistently.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayKey formats the calendar day of t.
func DayKey(t time.Time) string {
	return Day(t).Format(DayLayout)
}

// MonthKey formats the calendar month of t as YYYY-MM.
func MonthKey(t time.Time) string {
	return Day(t).Format("2006-01")
}

// ParseDay parses a YYYY-MM-DD string (or the date part of an RFC3339 value).
func ParseDay(s string) (time.Time, error) {
	if len(s) > len(DayLayout) {
		s = s[:len(DayLayout)]
	}
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return time.Time{}, Validation("invalid date %q", s)
	}
	return t, nil
}

// EachDay calls fn for every calendar day in [start, end].
func EachDay(start, end time.Time, fn func(day time.Time)) {
	for d := Day(start); !d.After(Day(end)); d = d.AddDate(0, 0, 1) {
		fn(d)
	}
}

// StartOfDay returns the first instant of t's day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// EndOfDay returns the last millisecond of t's day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc)
}

// DateRange is an optionally bounded, inclusive range of days.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// Between returns a range bounded on both sides.
func Between(start, end time.Time) DateRange {
	s, e := Day(start), Day(end)
	return DateRange{Start: &s, End: &e}
}

// ParseDateRange builds a range from optional YYYY-MM-DD strings.
func ParseDateRange(start, end string) (DateRange, error) {
	var r DateRange
	if start != "" {
		s, err := ParseDay(start)
		if err != nil {
			return DateRange{}, err
		}
		r.Start = &s
	}
	if end != "" {
		e, err := ParseDay(end)
		if err != nil {
			return DateRange{}, err
		}
		r.End = &e
	}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// Validate rejects inverted ranges.
func (r DateRange) Validate() error {
	if r.Start != nil && r.End != nil && Day(*r.Start).After(Day(*r.End)) {
		return Validation("start date %s is after end date %s", DayKey(*r.Start), DayKey(*r.End))
	}
	return nil
}

// Contains reports whether the calendar day of t lies inside the range.
func (r DateRange) Contains(t time.Time) bool {
	d := Day(t)
	if r.Start != nil && d.Before(Day(*r.Start)) {
		return false
	}
	if r.End != nil && d.After(Day(*r.End)) {
		return false
	}
	return true
}

// Bounds returns the range as nullable day values suitable for SQL predicates
// of the form ($1::date IS NULL OR col >= $1).
func (r DateRange) Bounds() (start, end *time.Time) {
	if r.Start != nil {
		s := Day(*r.Start)
		start = &s
	}
	if r.End != nil {
		e := Day(*r.End)
		end = &e
	}
	return start, end
}

// String renders the range for logs and cache keys.
func (r DateRange) String() string {
	start, end := "*", "*"
	if r.Start != nil {
		start = DayKey(*r.Start)
	}
	if r.End != nil {
		end = DayKey(*r.End)
	}
	return fmt.Sprintf("%s..%s", start, end)
}
