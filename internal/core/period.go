package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DayLayout   = "2006-01-02"
	MonthLayout = "2006-01"
)

// Date is a calendar day in UTC.
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidPeriodKey)
	}
	return nil
}

func (d Date) String() string {
	return d.Format(DayLayout)
}

// ParseDay parses a strict YYYY-MM-DD key.
func ParseDay(s string) (Date, error) {
	t, err := time.Parse(DayLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidPeriodKey, s)
	}
	return Date{Time: t}, nil
}

// ParseMonth parses a strict YYYY-MM key and returns the first day of that month.
func ParseMonth(s string) (Date, error) {
	t, err := time.Parse(MonthLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidPeriodKey, s)
	}
	return Date{Time: t}, nil
}

// ParsePeriod parses a key for the given granularity.
func ParsePeriod(g Granularity, s string) (Date, error) {
	if g == Monthly {
		return ParseMonth(s)
	}
	return ParseDay(s)
}

// FormatPeriod renders d as a key of the given granularity.
func FormatPeriod(g Granularity, d Date) string {
	if g == Monthly {
		return d.Format(MonthLayout)
	}
	return d.Format(DayLayout)
}

// AddPeriods moves d by n days or n calendar months. Monthly arithmetic always
// starts from the first of the month so it never overflows into the next month.
func AddPeriods(g Granularity, d Date, n int) Date {
	if g == Monthly {
		first := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Date{Time: first.AddDate(0, n, 0)}
	}
	return Date{Time: d.AddDate(0, 0, n)}
}

// Weekday returns the day of week with Monday as 0.
func Weekday(d Date) int {
	return (int(d.Time.Weekday()) + 6) % 7
}
