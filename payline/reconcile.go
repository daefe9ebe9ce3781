/*
reconcile.go - Merging new payment lines with existing history

PURPOSE:
  Produces the chained segment that gets submitted to the external
  payment system when a case's ongoing payments change. New lines are
  appended as-is; existing lines whose effect extends past the new
  lines' coverage are torn down and rebuilt with fresh identities and
  clamped periods, so the already-paid past is never disturbed and the
  untouched future keeps happening under new line ids.

ALGORITHM:
  1. Rebuild threshold = latest end date among the new lines. Existing
     lines ending on or before it are left untouched and not re-emitted.
  2. Weld a chain builder onto the existing history's tail and append
     the new lines in their own order.
  3. Every existing New line ending strictly after the threshold is
     copied with a fresh id, a fresh timestamp, and its start clamped to
     threshold+1. Change lines targeting it follow, retargeted at the
     rebuilt copy.
  4. Postconditions (weld, identity freshness, past-equivalence over the
     rebuilt window, strict timestamp order) are verified independently;
     any failure is a fatal InvariantError, never a business outcome.

The returned slice is the NEW segment only: new lines plus rebuilt
copies. Callers already hold the untouched prefix of the history.
*/
package payline

import (
	"fmt"
	"sort"
)

// Reconcile merges newLines with the existing chained history per the
// algorithm above. nextTimestamp is called exactly once per line minted
// here and must return strictly increasing values.
//
// Batch-validation failures (empty batch, overlapping New periods,
// duplicate timestamps) are contract violations reported as typed
// errors. InvariantError failures are fatal and must abort the whole
// operation.
func Reconcile(newLines, existing []PaymentLine, nextTimestamp TimestampFunc) ([]PaymentLine, error) {
	if err := validateBatch(newLines); err != nil {
		return nil, err
	}

	existingChain, err := ResolveChain(existing)
	if err != nil {
		return nil, err
	}
	var existingTail LineID
	if len(existingChain) > 0 {
		existingTail = existingChain[len(existingChain)-1].ID
	}

	threshold := rebuildThreshold(newLines)
	rebuildFrom := threshold.AddDays(1)

	builder := NewChainBuilder(existingTail)
	for _, line := range newLines {
		builder.Append(line)
	}

	rebuilt := rebuildLines(existingChain, threshold, nextTimestamp)
	for _, line := range rebuilt {
		builder.Append(line)
	}

	out := builder.Lines()
	if err := verifyPostconditions(out, existing, existingTail, rebuildFrom, rebuilt); err != nil {
		return nil, err
	}
	return out, nil
}

func validateBatch(newLines []PaymentLine) error {
	if len(newLines) == 0 {
		return ErrEmptyBatch
	}
	seen := make(map[int64]LineID, len(newLines))
	for i, a := range newLines {
		if !a.Period.IsValid() {
			return fmt.Errorf("line %s: %w", a.ID, ErrInvalidPeriod)
		}
		key := a.CreatedAt.UnixNano()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("line %s: %w", a.ID, ErrDuplicateTimestamp)
		}
		seen[key] = a.ID
		if a.Kind != KindNew {
			continue
		}
		for _, b := range newLines[i+1:] {
			if b.Kind == KindNew && a.Period.Overlaps(b.Period) {
				return &OverlapError{A: a.Period, B: b.Period}
			}
		}
	}
	return nil
}

// rebuildThreshold is the latest end date any new line prescribes;
// existing effect beyond it must be reconstructed.
func rebuildThreshold(newLines []PaymentLine) Date {
	threshold := newLines[0].Period.End
	for _, l := range newLines[1:] {
		threshold = MaxDate(threshold, l.Period.End)
	}
	return threshold
}

// rebuildLines copies every existing New line ending after the threshold,
// followed by the change lines that target it, all with fresh identities
// and starts clamped to threshold+1. News keep their original
// chronological order relative to each other.
func rebuildLines(existingChain []PaymentLine, threshold Date, nextTimestamp TimestampFunc) []PaymentLine {
	rebuildFrom := threshold.AddDays(1)

	var news []PaymentLine
	changesByTarget := make(map[LineID][]PaymentLine)
	for _, line := range existingChain {
		if !line.Period.End.After(threshold) {
			continue
		}
		if line.Kind == KindNew {
			news = append(news, line)
		} else {
			changesByTarget[line.TargetID] = append(changesByTarget[line.TargetID], line)
		}
	}
	sort.SliceStable(news, func(i, j int) bool {
		return news[i].CreatedAt.Before(news[j].CreatedAt)
	})

	var out []PaymentLine
	for _, original := range news {
		copyNew := original
		copyNew.ID = NewLineID()
		copyNew.CreatedAt = nextTimestamp()
		copyNew.Period = original.Period.ClampStart(rebuildFrom)
		out = append(out, copyNew)

		changes := changesByTarget[original.ID]
		sort.SliceStable(changes, func(i, j int) bool {
			return changes[i].CreatedAt.Before(changes[j].CreatedAt)
		})
		for _, change := range changes {
			copyChange := change
			copyChange.ID = NewLineID()
			copyChange.CreatedAt = nextTimestamp()
			copyChange.Period = change.Period.ClampStart(rebuildFrom)
			copyChange.TargetID = copyNew.ID
			out = append(out, copyChange)
		}
	}
	return out
}

// verifyPostconditions checks the reconciler's own output. A failure
// here means the merge logic is defective, so it is reported as a fatal
// InvariantError rather than a recoverable condition.
func verifyPostconditions(out, existing []PaymentLine, existingTail LineID, rebuildFrom Date, rebuilt []PaymentLine) error {
	// Weld: the segment's first line must reference the previous tail.
	if len(out) > 0 && out[0].PreviousID != existingTail {
		return &InvariantError{
			Check:  "weld",
			Detail: fmt.Sprintf("segment root references %q, existing tail is %q", out[0].PreviousID, existingTail),
		}
	}

	// Identity freshness: no existing id may reappear in the segment.
	existingIDs := make(map[LineID]struct{}, len(existing))
	for _, l := range existing {
		existingIDs[l.ID] = struct{}{}
	}
	for _, l := range out {
		if _, clash := existingIDs[l.ID]; clash {
			return &InvariantError{
				Check:  "identity freshness",
				Detail: fmt.Sprintf("line id %s already present in existing history", l.ID),
			}
		}
	}

	// Strict chronological order, no duplicate timestamps.
	for i := 1; i < len(out); i++ {
		if !out[i].CreatedAt.After(out[i-1].CreatedAt) {
			return &InvariantError{
				Check:  "timestamp order",
				Detail: fmt.Sprintf("line %s not created strictly after its predecessor", out[i].ID),
			}
		}
	}

	// Past-equivalence: over the rebuilt window, the segment alone must
	// reproduce exactly what the existing history was already going to do.
	if len(rebuilt) > 0 {
		window := Period{Start: rebuildFrom, End: rebuilt[0].Period.End}
		for _, l := range rebuilt[1:] {
			window.End = MaxDate(window.End, l.Period.End)
		}
		oldTL, err := Project(existing)
		if err != nil {
			return &InvariantError{Check: "rebuilt window", Detail: err.Error()}
		}
		newTL, err := Project(out)
		if err != nil {
			return &InvariantError{Check: "rebuilt window", Detail: err.Error()}
		}
		if !newTL.Equivalent(oldTL, window) {
			return &InvariantError{
				Check:  "rebuilt window",
				Detail: fmt.Sprintf("reconstruction changed effective payments over %s", window),
			}
		}
	}
	return nil
}
