// Package core provides the domain types shared across the application.
//
// This file contains the calendar Date type and the date arithmetic the
// habit scheduler is built on. Dates carry no time of day: they are
// normalized to midnight UTC so that day deltas are exact integers.
package core

import (
	"errors"
	"time"
)

// DateLayout is the wire format for calendar dates (ISO-8601).
const DateLayout = "2006-01-02"

// Date is a calendar date without time of day. The zero value means
// "unset" and is used for optional dates such as a habit's end date.
type Date struct {
	time.Time
}

// NewDate creates a Date from year, month and day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar date in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses an ISO-8601 calendar date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// Day returns the day of the month.
func (d Date) Day() int { return d.Time.Day() }

// Month returns the month as 1-12.
func (d Date) Month() int { return int(d.Time.Month()) }

// Year returns the year.
func (d Date) Year() int { return d.Time.Year() }

// String renders the date in ISO-8601 form.
func (d Date) String() string { return d.Time.Format(DateLayout) }

// BeforeDate reports whether d falls on an earlier calendar day than other.
func (d Date) BeforeDate(other Date) bool {
	return d.normalized().Before(other.normalized())
}

// AfterDate reports whether d falls on a later calendar day than other.
func (d Date) AfterDate(other Date) bool {
	return d.normalized().After(other.normalized())
}

// EqualDate reports whether both values name the same calendar day.
func (d Date) EqualDate(other Date) bool {
	return d.normalized().Equal(other.normalized())
}

// AddDays returns the date n days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return NewDate(d.Year(), d.Month(), d.Day()+n)
}

// Validate rejects the zero value. Range checks beyond that are not
// needed: time.Date already normalizes out-of-range components.
func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// MarshalJSON renders the date as a quoted ISO-8601 string, or null for
// the zero value.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts a quoted ISO-8601 string or null.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		*d = Date{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return errors.New("date must be a JSON string")
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) normalized() time.Time {
	return time.Date(d.Year(), time.Month(d.Month()), d.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysInMonth returns the number of days in the given month, accounting
// for leap years. Month is 1-12.
func DaysInMonth(year, month int) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DayDelta returns the signed number of days from a to b.
func DayDelta(a, b Date) int {
	return int(b.normalized().Sub(a.normalized()) / (24 * time.Hour))
}

// MonthDelta returns the signed number of month steps from a to b,
// ignoring the day of month.
func MonthDelta(a, b Date) int {
	return (b.Year()-a.Year())*12 + b.Month() - a.Month()
}
