package payline

import (
	"time"
)

// =============================================================================
// DATE - Day-precision calendar date (UTC)
// =============================================================================

type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its UTC calendar date.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{t: d.t.AddDate(0, n, 0)} }

// Properties
func (d Date) Year() int         { return d.t.Year() }
func (d Date) Month() time.Month { return d.t.Month() }
func (d Date) Day() int          { return d.t.Day() }
func (d Date) IsZero() bool      { return d.t.IsZero() }
func (d Date) Time() time.Time   { return d.t }

func (d Date) String() string { return d.t.Format("2006-01-02") }

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func MaxDate(a, b Date) Date {
	if a.After(b) {
		return a
	}
	return b
}

func MinDate(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

// =============================================================================
// MONTH - Calendar month, the disbursement granularity
// =============================================================================

// Month identifies one calendar month. Benefits are disbursed monthly, so
// the Timeline and the simulation cross-check both operate at this
// granularity.
type Month struct {
	Year  int
	Month time.Month
}

func MonthOf(d Date) Month {
	return Month{Year: d.Year(), Month: d.Month()}
}

func (m Month) Start() Date { return NewDate(m.Year, m.Month, 1) }

func (m Month) End() Date {
	return NewDate(m.Year, m.Month, 1).AddMonths(1).AddDays(-1)
}

func (m Month) Next() Month {
	return MonthOf(m.Start().AddMonths(1))
}

func (m Month) Before(other Month) bool {
	return m.Start().Before(other.Start())
}

func (m Month) After(other Month) bool {
	return m.Start().After(other.Start())
}

func (m Month) String() string { return m.Start().t.Format("2006-01") }
