// Package schedule holds the calendar arithmetic shared by the batch jobs:
// recurrence stepping, report scheduling and report period labels.
package schedule

import (
	"time"

	"github.com/Gargee-Buva/Finora/internal/domain"
)

// PeriodDateLayout is the layout of each side of a period label.
const PeriodDateLayout = "January 2, 2006"

// ParseInterval normalizes an interval name ("MONTHLY", " weekly ").
func ParseInterval(s string) (domain.RecurringInterval, bool) {
	return domain.ParseRecurringInterval(s)
}

// Midnight truncates t to 00:00:00 in t's own location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// NextOccurrence returns the occurrence after ref for the given interval.
// ref is truncated to midnight first. Month and year steps clamp to the last
// day of the target month, so Jan 31 steps to Feb 28 (or 29) and Feb 29 steps
// to Feb 28 of the following year. For none or unrecognized intervals the
// truncated date is returned unchanged.
func NextOccurrence(ref time.Time, iv domain.RecurringInterval) time.Time {
	base := Midnight(ref)

	interval, ok := domain.ParseRecurringInterval(string(iv))
	if !ok {
		return base
	}

	switch interval {
	case domain.IntervalDaily:
		return base.AddDate(0, 0, 1)
	case domain.IntervalWeekly:
		return base.AddDate(0, 0, 7)
	case domain.IntervalMonthly:
		return addMonthsClamped(base, 1)
	case domain.IntervalYearly:
		return addMonthsClamped(base, 12)
	}
	return base
}

// InitialOccurrence is the first scheduled occurrence of a new recurring
// transaction dated at date. A start date whose next step already lies in the
// past is rescheduled from now instead.
func InitialOccurrence(date time.Time, iv domain.RecurringInterval, now time.Time) time.Time {
	next := NextOccurrence(date, iv)
	if next.Before(now) {
		return NextOccurrence(now, iv)
	}
	return next
}

// NextReportDate returns 00:00 UTC on the first day of the month after the
// reference, where the reference is lastSent clamped to now (or now when
// lastSent is nil).
func NextReportDate(lastSent *time.Time, now time.Time) time.Time {
	ref := now
	if lastSent != nil && lastSent.Before(now) {
		ref = *lastSent
	}
	ref = ref.UTC()
	return time.Date(ref.Year(), ref.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

// PreviousMonth returns the first instant and the last nanosecond of the UTC
// calendar month before now.
func PreviousMonth(now time.Time) (from, to time.Time) {
	now = now.UTC()
	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	from = thisMonth.AddDate(0, -1, 0)
	to = thisMonth.Add(-time.Nanosecond)
	return from, to
}

// PeriodLabel renders a period as "January 1, 2025 - January 31, 2025" (UTC).
func PeriodLabel(from, to time.Time) string {
	return from.UTC().Format(PeriodDateLayout) + " - " + to.UTC().Format(PeriodDateLayout)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	target := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(target.Year(), target.Month()); d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
