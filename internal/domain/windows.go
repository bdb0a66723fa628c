package domain

import "time"

// Window is a half-open time range [From, To). The half-open convention keeps a
// timestamp landing exactly on midnight out of "today" and in "tomorrow", so
// adjacent periods never double-count.
//
// All windows are anchored in UTC. Calendar-day boundaries are therefore stable
// regardless of server locale; this is the documented timezone policy for the
// whole ledger (stats, streaks, goal windows).
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the half-open window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// DayWindow returns [midnight, midnight+24h) for the day containing now.
func DayWindow(now time.Time) Window {
	from := midnight(now)
	return Window{From: from, To: from.AddDate(0, 0, 1)}
}

// WeekWindow returns the Sunday-to-Saturday week containing now, as
// [Sunday midnight, +7 days).
func WeekWindow(now time.Time) Window {
	day := midnight(now)
	from := day.AddDate(0, 0, -int(day.Weekday()))
	return Window{From: from, To: from.AddDate(0, 0, 7)}
}

// MonthWindow returns [first of month, first of next month) for now.
func MonthWindow(now time.Time) Window {
	t := now.UTC()
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Window{From: from, To: from.AddDate(0, 1, 0)}
}

// YearWindow returns [Jan 1, next Jan 1) for now.
func YearWindow(now time.Time) Window {
	from := time.Date(now.UTC().Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	return Window{From: from, To: from.AddDate(1, 0, 0)}
}

// PeriodWindow maps a goal period type to its window containing now.
func PeriodWindow(period PeriodType, now time.Time) Window {
	switch period {
	case PeriodWeekly:
		return WeekWindow(now)
	case PeriodMonthly:
		return MonthWindow(now)
	case PeriodYearly:
		return YearWindow(now)
	default:
		return DayWindow(now)
	}
}

func midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
