package core

import "time"

const dateLayout = "2006-01-02"

// Window is an inclusive range of calendar days.
type Window struct {
	Start Date
	End   Date
}

// Contains reports whether d falls on a day inside the window.
func (w Window) Contains(d Date) bool {
	day := d.String()
	return day >= w.Start.String() && day <= w.End.String()
}

func (w Window) String() string {
	return w.Start.String() + ".." + w.End.String()
}

// NewDate returns midnight of the given day in loc.
func NewDate(year int, month time.Month, day int, loc *time.Location) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, loc)}
}

// DateOf truncates t to the start of its calendar day in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d, t.Location())
}

// ParseDate parses a YYYY-MM-DD string as a day in loc.
func ParseDate(s string, loc *time.Location) (Date, error) {
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// AddDays moves the date by n calendar days, DST-safe.
func (d Date) AddDays(n int) Date {
	y, m, day := d.Date()
	return NewDate(y, m, day+n, d.Location())
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// WeekdayIndex maps t's weekday to Monday = 0 .. Sunday = 6.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// IsLastDayOfMonth reports whether t is the final calendar day of its month.
func IsLastDayOfMonth(t time.Time) bool {
	return t.Day() == DaysIn(t.Year(), t.Month())
}

// ClampedMonthDay returns day clamped down to the last valid day of the month.
func ClampedMonthDay(year int, month time.Month, day int) int {
	if last := DaysIn(year, month); day > last {
		return last
	}
	return day
}
