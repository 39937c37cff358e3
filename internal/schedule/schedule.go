// Package schedule decides whether a habit is due on a given calendar
// date. The evaluation is pure arithmetic over the habit definition:
// no state, no clock, safe for concurrent use.
package schedule

import (
	"bilancio/internal/core"
)

// IsDue reports whether the habit's recurrence rule fires on target.
//
// A habit is never due before its start date or after its end date
// (when one is set). Otherwise the rule depends on the unit:
//
//   - day: every interval days from the start date.
//   - week: every 7*interval days from the start date.
//   - month: every interval months, on the start date's day of month.
//     An anchor day of 29-31 degrades to the last day of shorter
//     months, so a habit anchored on the 31st still fires in February.
//
// Non-positive intervals and unknown units report not due. Habit
// validation rejects both at creation time, so these branches only
// matter for values that never went through it.
func IsDue(h core.Habit, target core.Date) bool {
	if target.BeforeDate(h.StartDate) {
		return false
	}
	if !h.EndDate.IsZero() && target.AfterDate(h.EndDate) {
		return false
	}
	if h.Interval < 1 {
		return false
	}

	switch h.Unit {
	case core.UnitDay:
		return core.DayDelta(h.StartDate, target)%h.Interval == 0
	case core.UnitWeek:
		return core.DayDelta(h.StartDate, target)%(7*h.Interval) == 0
	case core.UnitMonth:
		if core.MonthDelta(h.StartDate, target)%h.Interval != 0 {
			return false
		}
		return target.Day() == dueDayOfMonth(h.StartDate.Day(), target)
	default:
		return false
	}
}

// dueDayOfMonth clamps the anchor day to the length of target's month.
func dueDayOfMonth(anchorDay int, target core.Date) int {
	if last := core.DaysInMonth(target.Year(), target.Month()); anchorDay > last {
		return last
	}
	return anchorDay
}

// Occurrences enumerates every date in [from, to] (inclusive) on which
// the habit is due, in ascending order. Returns nil when the range is
// empty or inverted.
func Occurrences(h core.Habit, from, to core.Date) []core.Date {
	if to.BeforeDate(from) {
		return nil
	}
	var out []core.Date
	for d := from; !d.AfterDate(to); d = d.AddDays(1) {
		if IsDue(h, d) {
			out = append(out, d)
		}
	}
	return out
}
