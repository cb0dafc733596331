package domain

import (
	"errors"
	"fmt"
	"iter"
	"time"

	"cloud.google.com/go/civil"
)

// ErrInvalidRange is returned for malformed dates and inverted or oversized ranges.
var ErrInvalidRange = errors.New("invalid date range")

// DateRange is an inclusive span of calendar days. Dates carry no time of
// day or zone, so day arithmetic is free of DST and offset drift.
type DateRange struct {
	Start civil.Date `json:"start_date"`
	End   civil.Date `json:"end_date"`
}

// NewDateRange validates both ends and requires start <= end.
func NewDateRange(start, end civil.Date) (DateRange, error) {
	if !start.IsValid() {
		return DateRange{}, fmt.Errorf("%w: start date %s is not a calendar date", ErrInvalidRange, start)
	}
	if !end.IsValid() {
		return DateRange{}, fmt.Errorf("%w: end date %s is not a calendar date", ErrInvalidRange, end)
	}
	if end.Before(start) {
		return DateRange{}, fmt.Errorf("%w: end date %s is before start date %s", ErrInvalidRange, end, start)
	}
	return DateRange{Start: start, End: end}, nil
}

// ParseDateRange parses two YYYY-MM-DD strings into a range.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := ParseDate(start)
	if err != nil {
		return DateRange{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return DateRange{}, err
	}
	return NewDateRange(s, e)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (civil.Date, error) {
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", ErrInvalidRange, s)
	}
	return d, nil
}

// SingleDay returns the range covering only d.
func SingleDay(d civil.Date) DateRange {
	return DateRange{Start: d, End: d}
}

// MonthRange returns the first through last day of the month.
func MonthRange(year int, month time.Month) (DateRange, error) {
	if month < time.January || month > time.December {
		return DateRange{}, fmt.Errorf("%w: month %d is outside 1-12", ErrInvalidRange, month)
	}
	if year < 1 || year > 9999 {
		return DateRange{}, fmt.Errorf("%w: year %d is outside 1-9999", ErrInvalidRange, year)
	}
	first := civil.Date{Year: year, Month: month, Day: 1}
	// Day 0 of the next month normalizes to the last day of this one.
	last := civil.DateOf(time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC))
	return DateRange{Start: first, End: last}, nil
}

// Days returns the number of days in the range, both ends included.
func (r DateRange) Days() int {
	return r.End.DaysSince(r.Start) + 1
}

// Contains reports whether d falls within the range.
func (r DateRange) Contains(d civil.Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Overlaps reports whether the two ranges share at least one day:
// r.Start <= o.End and r.End >= o.Start.
func (r DateRange) Overlaps(o DateRange) bool {
	return !r.Start.After(o.End) && !r.End.Before(o.Start)
}

// Clip returns the part of r inside bounds and false when they do not overlap.
func (r DateRange) Clip(bounds DateRange) (DateRange, bool) {
	if !r.Overlaps(bounds) {
		return DateRange{}, false
	}
	out := r
	if out.Start.Before(bounds.Start) {
		out.Start = bounds.Start
	}
	if out.End.After(bounds.End) {
		out.End = bounds.End
	}
	return out, true
}

// All yields every day from Start to End inclusive.
func (r DateRange) All() iter.Seq[civil.Date] {
	return func(yield func(civil.Date) bool) {
		for d := r.Start; !d.After(r.End); d = d.AddDays(1) {
			if !yield(d) {
				return
			}
		}
	}
}

// String renders the range as "start..end".
func (r DateRange) String() string {
	return r.Start.String() + ".." + r.End.String()
}
