package generic

import (
	"time"
)

// =============================================================================
// SIMULATED CALENDAR - Periods are calendar months from a start month
// =============================================================================

// StartOfMonth truncates t to midnight UTC on the first day of its month.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// PeriodStart returns the first day of period index i counted from start.
func PeriodStart(start time.Time, i int) time.Time {
	return StartOfMonth(start).AddDate(0, i, 0)
}

// PeriodDays returns every day of period i, in order.
func PeriodDays(start time.Time, i int) []time.Time {
	first := PeriodStart(start, i)
	next := first.AddDate(0, 1, 0)
	days := make([]time.Time, 0, 31)
	for d := first; d.Before(next); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// MonthKey formats t as "2006-01", the key used by monthly summaries.
func MonthKey(t time.Time) string { return t.UTC().Format("2006-01") }

// DayKey formats t as "2006-01-02".
func DayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

func SameDay(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// =============================================================================
// NAMED DATES - Retail and giving calendar anchors
// =============================================================================

// Thanksgiving returns the fourth Thursday of November.
func Thanksgiving(year int) time.Time {
	nov1 := time.Date(year, time.November, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(time.Thursday) - int(nov1.Weekday()) + 7) % 7
	return nov1.AddDate(0, 0, offset+21)
}

// BlackFriday is the day after Thanksgiving.
func BlackFriday(year int) time.Time { return Thanksgiving(year).AddDate(0, 0, 1) }

// CyberMonday is the Monday after Thanksgiving.
func CyberMonday(year int) time.Time { return Thanksgiving(year).AddDate(0, 0, 4) }

// GivingTuesday is the Tuesday after Thanksgiving.
func GivingTuesday(year int) time.Time { return Thanksgiving(year).AddDate(0, 0, 5) }

// Holiday names accepted by HolidayRule and the factory spec.
const (
	HolidayThanksgiving  = "thanksgiving"
	HolidayBlackFriday   = "black_friday"
	HolidayCyberMonday   = "cyber_monday"
	HolidayGivingTuesday = "giving_tuesday"
)

// HolidayDate resolves a named holiday for a year.
func HolidayDate(name string, year int) (time.Time, bool) {
	switch name {
	case HolidayThanksgiving:
		return Thanksgiving(year), true
	case HolidayBlackFriday:
		return BlackFriday(year), true
	case HolidayCyberMonday:
		return CyberMonday(year), true
	case HolidayGivingTuesday:
		return GivingTuesday(year), true
	default:
		return time.Time{}, false
	}
}

// DaysBetween counts whole days from a to b (negative when b is before a).
func DaysBetween(a, b time.Time) int {
	return int(StartOfDay(b).Sub(StartOfDay(a)).Hours() / 24)
}

// AddMonths moves t by n calendar months, clamping the day to the target
// month's last day (Jan 31 + 1 month = Feb 28/29).
func AddMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, n, 0)
	last := first.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// ClampToDay returns t, or the last second of day when t has left it.
func ClampToDay(t, day time.Time) time.Time {
	if SameDay(t, day) {
		return t
	}
	return StartOfDay(day).Add(24*time.Hour - time.Second)
}
