/*
crosscheck.go - Cross-validation of the projected timeline against the
external simulation

PURPOSE:
  Last line of defense before a payment change is submitted: the locally
  projected Timeline of (existing history + candidate segment) is
  compared month by month against what the external accounting system
  says it would actually disburse. Any disagreement means the change is
  not submitted - a wrong or duplicate disbursement has direct financial
  consequences.

CHECKS:
  1. Oracle failures propagate as SimulationError (fatal, not retried).
  2. Projection failures propagate as a ChainError (timeline unresolvable).
  3. Month-by-month consistency between timeline and simulation, with
     prioritized discrepancy kinds. All discrepancies are collected, not
     short-circuited, so operators see exactly which months disagree.
  4. Unaffected-future check: where the existing history outlives the
     working period, the candidate segment on its own must reproduce the
     existing history exactly - otherwise the change would silently alter
     payments for periods it was not meant to touch.
*/
package payline

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// DISCREPANCIES
// =============================================================================

// DiscrepancyKind classifies a single month's disagreement between the
// projected timeline and the simulation. Declaration order is severity
// order: overpayment during a stop or resume outranks plain type/amount
// mismatches.
type DiscrepancyKind int

const (
	DiscrepancyStopOverpayment DiscrepancyKind = iota
	DiscrepancyResumeOverpayment
	DiscrepancyTypeMismatch
	DiscrepancyAmountMismatch
)

func (k DiscrepancyKind) String() string {
	switch k {
	case DiscrepancyStopOverpayment:
		return "overpayment during stop"
	case DiscrepancyResumeOverpayment:
		return "overpayment during resume"
	case DiscrepancyTypeMismatch:
		return "type mismatch"
	case DiscrepancyAmountMismatch:
		return "amount mismatch"
	default:
		return "unknown"
	}
}

// Discrepancy is one month's disagreement, with both observed sides.
type Discrepancy struct {
	Kind  DiscrepancyKind
	Month Month

	// Timeline side.
	TimelineKind   LineKind
	TimelineAmount Amount

	// Simulation side.
	SimulatedAmount Amount
	Overpayment     Amount
}

func (d Discrepancy) String() string {
	switch d.Kind {
	case DiscrepancyStopOverpayment, DiscrepancyResumeOverpayment:
		return fmt.Sprintf("%s: %s (overpaid %s)", d.Month, d.Kind, d.Overpayment)
	case DiscrepancyAmountMismatch:
		return fmt.Sprintf("%s: %s (timeline %s, simulated %s)", d.Month, d.Kind, d.TimelineAmount, d.SimulatedAmount)
	default:
		return fmt.Sprintf("%s: %s (timeline shows %s, simulation shows no disbursement)", d.Month, d.Kind, d.TimelineKind)
	}
}

// CrossCheckError carries the full, severity-ordered discrepancy list.
// Never truncated to the first failure.
type CrossCheckError struct {
	Discrepancies []Discrepancy
}

func (e *CrossCheckError) Error() string {
	parts := make([]string, len(e.Discrepancies))
	for i, d := range e.Discrepancies {
		parts[i] = d.String()
	}
	return fmt.Sprintf("cross-check failed: %s", strings.Join(parts, "; "))
}

func (e *CrossCheckError) Unwrap() error { return ErrCrossCheckFailed }

// =============================================================================
// CROSS-CHECKER
// =============================================================================

// CrossChecker validates candidate payment line segments against the
// external simulation oracle before submission.
type CrossChecker struct {
	Simulator Simulator
}

func NewCrossChecker(sim Simulator) *CrossChecker {
	return &CrossChecker{Simulator: sim}
}

// Validate runs the full cross-check for a candidate segment (the
// reconciler's output: the caller's instruction lines plus any rebuilt
// tail) against the case's existing history.
//
// workingPeriod is the span the change is meant to affect - typically
// the instruction line's own period. Months beyond it belong to the
// unaffected future and are covered by the reconstructed-period check.
//
// Returns nil only when every check passes. Callers must treat any
// error as "do not submit to the external payment system"; the engine
// never retries a failed cross-check.
func (c *CrossChecker) Validate(ctx context.Context, workingPeriod Period, candidate, existing []PaymentLine) error {
	if len(candidate) == 0 {
		return ErrEmptyBatch
	}

	simulated, err := c.Simulator.Simulate(ctx, candidate, candidateSpan(candidate))
	if err != nil {
		return &SimulationError{Err: err}
	}

	merged := make([]PaymentLine, 0, len(existing)+len(candidate))
	merged = append(merged, existing...)
	merged = append(merged, candidate...)
	timeline, err := Project(merged)
	if err != nil {
		return err
	}

	if discrepancies := compareMonths(workingPeriod, timeline, simulated); len(discrepancies) > 0 {
		return &CrossCheckError{Discrepancies: discrepancies}
	}

	return c.checkReconstructedPeriod(workingPeriod, candidate, existing)
}

// candidateSpan covers the earliest to latest date across the segment.
func candidateSpan(candidate []PaymentLine) Period {
	span := candidate[0].Period
	for _, l := range candidate[1:] {
		span.Start = MinDate(span.Start, l.Period.Start)
		span.End = MaxDate(span.End, l.Period.End)
	}
	return span
}

// compareMonths performs the month-by-month consistency check. All
// discrepancies across the window are collected, then sorted by
// severity and month.
func compareMonths(workingPeriod Period, timeline *Timeline, simulated SimulationResult) []Discrepancy {
	var discrepancies []Discrepancy

	if simulated.IsEmpty() {
		// The oracle would disburse nothing at all: every covered month of
		// the working period must be stopped, cancelled, or a zero amount.
		for _, m := range workingPeriod.Months() {
			entry, ok := timeline.EntryForMonth(m)
			if !ok {
				continue
			}
			if entryExpectsDisbursement(entry) {
				discrepancies = append(discrepancies, Discrepancy{
					Kind:           DiscrepancyTypeMismatch,
					Month:          m,
					TimelineKind:   entry.Kind,
					TimelineAmount: entry.Amount,
				})
			}
		}
	} else {
		for _, sim := range simulated.Months {
			if sim.IsTrivial() {
				continue
			}
			entry, ok := timeline.EntryForMonth(sim.Month)
			if !ok {
				// The oracle pays out for a month the timeline does not cover.
				discrepancies = append(discrepancies, Discrepancy{
					Kind:            DiscrepancyTypeMismatch,
					Month:           sim.Month,
					SimulatedAmount: sim.Amount,
					Overpayment:     sim.Overpayment,
				})
				continue
			}
			if entry.Kind == KindStop && sim.Overpayment.IsPositive() {
				discrepancies = append(discrepancies, Discrepancy{
					Kind:           DiscrepancyStopOverpayment,
					Month:          sim.Month,
					TimelineKind:   entry.Kind,
					TimelineAmount: entry.Amount,
					Overpayment:    sim.Overpayment,
				})
			}
			if entry.Kind == KindResume && sim.Overpayment.IsPositive() {
				discrepancies = append(discrepancies, Discrepancy{
					Kind:           DiscrepancyResumeOverpayment,
					Month:          sim.Month,
					TimelineKind:   entry.Kind,
					TimelineAmount: entry.Amount,
					Overpayment:    sim.Overpayment,
				})
			}
			if !sim.Amount.Equal(entry.Amount) {
				discrepancies = append(discrepancies, Discrepancy{
					Kind:            DiscrepancyAmountMismatch,
					Month:           sim.Month,
					TimelineKind:    entry.Kind,
					TimelineAmount:  entry.Amount,
					SimulatedAmount: sim.Amount,
					Overpayment:     sim.Overpayment,
				})
			}
		}
	}

	sort.SliceStable(discrepancies, func(i, j int) bool {
		if discrepancies[i].Kind != discrepancies[j].Kind {
			return discrepancies[i].Kind < discrepancies[j].Kind
		}
		return discrepancies[i].Month.Before(discrepancies[j].Month)
	})
	return discrepancies
}

// entryExpectsDisbursement reports whether a timeline entry implies
// money should flow for its month.
func entryExpectsDisbursement(entry TimelineEntry) bool {
	switch entry.Kind {
	case KindStop, KindCancel:
		return false
	case KindNew, KindResume:
		return !entry.Amount.IsZero()
	default:
		return true
	}
}

// checkReconstructedPeriod verifies the unaffected future: where the
// existing history outlives the working period, the candidate segment
// alone must behave identically to the existing history over that
// window. Divergence means the reconstruction is wrong and is fatal.
func (c *CrossChecker) checkReconstructedPeriod(workingPeriod Period, candidate, existing []PaymentLine) error {
	var latestEnd Date
	for _, l := range existing {
		latestEnd = MaxDate(latestEnd, l.Period.End)
	}
	if !latestEnd.After(workingPeriod.End) {
		return nil
	}

	window := Period{Start: workingPeriod.End.AddDays(1), End: latestEnd}
	candidateTL, err := Project(candidate)
	if err != nil {
		return err
	}
	existingTL, err := Project(existing)
	if err != nil {
		return err
	}
	if !candidateTL.Equivalent(existingTL, window) {
		return &ReconstructedPeriodError{Window: window}
	}
	return nil
}
