package core

import "time"

type (
	// Period identifies a reporting window: one calendar month of one year.
	Period struct {
		Year  int
		Month int // 1-12
	}

	Date struct {
		time.Time
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Validate rejects the zero date. Out-of-range components never survive
// construction: time.Date normalizes them, so NewDate(2025, 13, 1) is already
// January 2026 by the time it gets here.
func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// Period returns the year/month the date falls in. Day-of-month is not
// significant for scheduling.
func (d Date) Period() Period {
	return Period{Year: d.Year(), Month: d.Month()}
}

// AddMonths returns the date n months later (earlier for negative n).
// When the target month is shorter than the original day-of-month, the day
// is clamped to the last day of the target month, so Jan 31 + 1 month is
// Feb 28 (or 29), never Mar 3.
func (d Date) AddMonths(n int) Date {
	year, month, day := d.Date()
	target := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	lastDay := time.Date(target.Year(), target.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > lastDay {
		day = lastDay
	}
	return NewDate(target.Year(), int(target.Month()), day)
}

// NewPeriod builds a Period, normalizing out-of-range months by rolling
// into adjacent years (month 0 becomes December of the previous year).
func NewPeriod(year, month int) Period {
	t := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return Period{Year: t.Year(), Month: int(t.Month())}
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// AddMonths returns the period n months later, carrying into the year.
func (p Period) AddMonths(n int) Period {
	return NewPeriod(p.Year, p.Month+n)
}

// MonthsBetween returns the number of calendar months from one period to
// another, positive when to is later than from. Day-of-month never enters
// the calculation.
func MonthsBetween(from, to Period) int {
	return (to.Year-from.Year)*12 + (to.Month - from.Month)
}
