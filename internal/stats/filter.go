// Package stats turns raw income records into totals, time series, platform
// ratios and calendar grids.
//
// Every function is pure: results depend only on the records and the explicit
// now argument, and inputs are never modified. Record dates must be valid
// YYYY-MM-DD strings; the functions do not validate them. Date windows are
// computed in now's location.
package stats

import (
	"strings"
	"time"

	"github.com/tankkwon/delivery-app/internal/core"
)

// Select returns the records inside period that match platform, in their
// original order. core.AllPlatforms disables the platform filter.
func Select(records []core.Record, period core.Period, platform core.Platform, now time.Time) []core.Record {
	match := windowPredicate(period, now)
	out := make([]core.Record, 0, len(records))
	for _, r := range records {
		if platform != core.AllPlatforms && r.Platform != platform {
			continue
		}
		if !match(r.Date) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// WindowStart returns the inclusive lower bound date of a rolling period and
// false for periods that are not rolling lookbacks.
func WindowStart(period core.Period, now time.Time) (string, bool) {
	today := dateOf(now)
	switch period {
	case core.PeriodToday:
		return core.FormatDate(today), true
	case core.PeriodWeek:
		return core.FormatDate(today.AddDate(0, 0, -7)), true
	case core.PeriodMonth:
		return core.FormatDate(addMonthsClamped(today, -1)), true
	case core.PeriodYear:
		return core.FormatDate(addMonthsClamped(today, -12)), true
	default:
		return "", false
	}
}

func windowPredicate(period core.Period, now time.Time) func(date string) bool {
	today := core.FormatDate(now)
	switch period {
	case core.PeriodToday:
		return func(date string) bool { return date == today }
	case core.PeriodWeek, core.PeriodMonth, core.PeriodYear:
		start, _ := WindowStart(period, now)
		return func(date string) bool { return date >= start }
	case core.PeriodThisMonth:
		prefix := now.Format(core.MonthLayout) + "-"
		return func(date string) bool { return strings.HasPrefix(date, prefix) }
	default:
		return func(string) bool { return true }
	}
}

// dateOf truncates t to midnight in its own location.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// addMonthsClamped moves t by n calendar months, clamping the day to the
// length of the target month (Mar 31 - 1 month = Feb 28 or 29).
func addMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
