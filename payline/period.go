package payline

// =============================================================================
// PERIOD - Inclusive date range
// =============================================================================

// Period is an inclusive [Start, End] date range. Payment line periods
// and change effective ranges are always expressed this way.
type Period struct {
	Start Date
	End   Date
}

// IsValid reports whether the period is well-formed (non-zero, end not
// before start).
func (p Period) IsValid() bool {
	return !p.Start.IsZero() && !p.End.IsZero() && p.Start.BeforeOrEqual(p.End)
}

// Contains returns true if the date is within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// ContainsMonth returns true if any day of the month falls within the period.
func (p Period) ContainsMonth(m Month) bool {
	return !m.End().Before(p.Start) && !m.Start().After(p.End)
}

// Overlaps returns true if the two periods share at least one day.
func (p Period) Overlaps(other Period) bool {
	return p.Start.BeforeOrEqual(other.End) && other.Start.BeforeOrEqual(p.End)
}

// Months returns every calendar month touched by the period, in order.
func (p Period) Months() []Month {
	if !p.IsValid() {
		return nil
	}
	var months []Month
	current := MonthOf(p.Start)
	last := MonthOf(p.End)
	for !current.After(last) {
		months = append(months, current)
		current = current.Next()
	}
	return months
}

// ClampStart returns a copy whose start is moved forward to min if the
// original start precedes it. The result may be invalid (start past end)
// when the period lies entirely before min; callers must check IsValid.
func (p Period) ClampStart(min Date) Period {
	return Period{Start: MaxDate(p.Start, min), End: p.End}
}

// Intersect returns the overlap of two periods, invalid if disjoint.
func (p Period) Intersect(other Period) Period {
	return Period{Start: MaxDate(p.Start, other.Start), End: MinDate(p.End, other.End)}
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
