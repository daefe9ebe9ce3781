/*
timeline.go - Per-month projection of a payment line chain

PURPOSE:
  Expands an ordered chain of payment lines into the effective amount per
  calendar month. Later lines override earlier ones for the months they
  touch, so folding the chain left-to-right yields "what will actually be
  paid" - the view that gets cross-checked against the external
  simulation before anything is submitted.

STAMPING RULES:
  New    -> each month of its period gets the line's amount
  Stop   -> each month of its period is re-stamped with zero
  Resume -> re-stamped with the targeted New line's original amount
  Cancel -> re-stamped with zero and marked terminated

A Timeline is ephemeral and never persisted; it is recomputed on demand
from the chain, which is the single source of truth.
*/
package payline

// TimelineEntry is the effective state of one month: which line is in
// effect, its kind, and the amount that will be disbursed.
type TimelineEntry struct {
	Line       PaymentLine
	Kind       LineKind
	Amount     Amount
	Terminated bool
}

// Timeline maps calendar months to the payment line in effect. Point
// queries outside the covered span report no coverage rather than zero.
type Timeline struct {
	entries map[Month]TimelineEntry
	span    Period
}

// Project folds an ordered (or orderable) set of payment lines into a
// Timeline. The input must form a valid chain; chain failures propagate
// as a ChainError.
func Project(lines []PaymentLine) (*Timeline, error) {
	ordered, err := ResolveChain(lines)
	if err != nil {
		return nil, err
	}

	byID := make(map[LineID]PaymentLine, len(ordered))
	for _, l := range ordered {
		byID[l.ID] = l
	}

	tl := &Timeline{entries: make(map[Month]TimelineEntry)}
	for _, line := range ordered {
		if !line.Period.IsValid() {
			continue
		}
		entry := TimelineEntry{Line: line, Kind: line.Kind}
		switch line.Kind {
		case KindNew:
			entry.Amount = line.Amount
		case KindStop:
			entry.Amount = ZeroAmount()
		case KindResume:
			// The reinstated amount is the targeted New line's original
			// amount; fall back to the resume line's own copy when the
			// target is outside the projected set.
			if target, ok := byID[line.TargetID]; ok {
				entry.Amount = target.Amount
			} else {
				entry.Amount = line.Amount
			}
		case KindCancel:
			entry.Amount = ZeroAmount()
			entry.Terminated = true
		}
		for _, m := range line.Period.Months() {
			tl.entries[m] = entry
		}
		tl.growSpan(line.Period)
	}
	return tl, nil
}

func (t *Timeline) growSpan(p Period) {
	if t.span.Start.IsZero() || p.Start.Before(t.span.Start) {
		t.span.Start = p.Start
	}
	if t.span.End.IsZero() || p.End.After(t.span.End) {
		t.span.End = p.End
	}
}

// IsEmpty reports whether the timeline covers no months at all.
func (t *Timeline) IsEmpty() bool { return len(t.entries) == 0 }

// Span returns the covered date range, false when empty.
func (t *Timeline) Span() (Period, bool) {
	if t.IsEmpty() {
		return Period{}, false
	}
	return t.span, true
}

// EntryForMonth returns the effective entry for a calendar month.
func (t *Timeline) EntryForMonth(m Month) (TimelineEntry, bool) {
	e, ok := t.entries[m]
	return e, ok
}

// EntryAt returns the effective entry for the month containing the date.
func (t *Timeline) EntryAt(d Date) (TimelineEntry, bool) {
	return t.EntryForMonth(MonthOf(d))
}

// Months returns the covered months in chronological order.
func (t *Timeline) Months() []Month {
	if t.IsEmpty() {
		return nil
	}
	var months []Month
	for _, m := range t.span.Months() {
		if _, ok := t.entries[m]; ok {
			months = append(months, m)
		}
	}
	return months
}

// Shrink returns a copy restricted to the months overlapping the period.
// The receiver is not modified.
func (t *Timeline) Shrink(p Period) *Timeline {
	out := &Timeline{entries: make(map[Month]TimelineEntry)}
	for _, m := range p.Months() {
		if e, ok := t.entries[m]; ok {
			out.entries[m] = e
			out.growSpan(Period{Start: MaxDate(m.Start(), p.Start), End: MinDate(m.End(), p.End)})
		}
	}
	return out
}

// Equivalent reports whether two timelines are behaviorally identical
// over a window: for every month, both cover it or neither does, and
// covered months agree on effective amount and line kind. Line identity
// is deliberately ignored - rebuilt copies must compare equal to the
// originals they replaced.
func (t *Timeline) Equivalent(other *Timeline, window Period) bool {
	for _, m := range window.Months() {
		a, aok := t.EntryForMonth(m)
		b, bok := other.EntryForMonth(m)
		if aok != bok {
			return false
		}
		if !aok {
			continue
		}
		if a.Kind != b.Kind || !a.Amount.Equal(b.Amount) || a.Terminated != b.Terminated {
			return false
		}
	}
	return true
}
