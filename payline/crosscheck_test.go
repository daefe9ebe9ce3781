package payline_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/warp/payline-engine/payline"
)

// =============================================================================
// TEST SIMULATORS
// =============================================================================

// emptySimulator reports no disbursement anywhere.
var emptySimulator = payline.SimulatorFunc(
	func(ctx context.Context, lines []payline.PaymentLine, period payline.Period) (payline.SimulationResult, error) {
		return payline.SimulationResult{}, nil
	})

// fixedSimulator replays a canned result.
func fixedSimulator(result payline.SimulationResult) payline.Simulator {
	return payline.SimulatorFunc(
		func(ctx context.Context, lines []payline.PaymentLine, period payline.Period) (payline.SimulationResult, error) {
			return result, nil
		})
}

func simMonth(year int, month time.Month, amount, overpayment int64) payline.SimulatedMonth {
	return payline.SimulatedMonth{
		Month:       payline.MonthOf(date(year, month, 1)),
		Amount:      amt(amount),
		Overpayment: amt(overpayment),
	}
}

// =============================================================================
// CONSISTENCY CHECK TESTS
// =============================================================================

func TestValidate_SoundnessWithEmptySimulation(t *testing.T) {
	// GIVEN: A stop covering the working period and a simulation showing
	//        no disbursement at all
	// THEN: The cross-check passes

	clock := testClock()
	newLine := payline.NewLine(span(date(2024, time.January, 1), date(2024, time.December, 31)), amt(1000), clock())
	existing := chainOf(newLine)
	stop := payline.StopLine(existing[0], date(2024, time.June, 1), clock())

	segment, err := payline.Reconcile([]payline.PaymentLine{stop}, existing, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checker := payline.NewCrossChecker(emptySimulator)
	if err := checker.Validate(context.Background(), stop.Period, segment, existing); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestValidate_TypeMismatchWhenSimulationEmptyButTimelinePays(t *testing.T) {
	clock := testClock()
	grant := payline.NewLine(span(date(2024, time.January, 1), date(2024, time.March, 31)), amt(1000), clock())

	segment, err := payline.Reconcile([]payline.PaymentLine{grant}, nil, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checker := payline.NewCrossChecker(emptySimulator)
	err = checker.Validate(context.Background(), grant.Period, segment, nil)

	var cce *payline.CrossCheckError
	if !errors.As(err, &cce) {
		t.Fatalf("expected CrossCheckError, got %v", err)
	}
	if len(cce.Discrepancies) != 3 {
		t.Fatalf("expected one discrepancy per month, got %d", len(cce.Discrepancies))
	}
	for _, d := range cce.Discrepancies {
		if d.Kind != payline.DiscrepancyTypeMismatch {
			t.Errorf("expected type mismatch, got %s", d.Kind)
		}
	}
}

func TestValidate_TypeMismatchWhenSimulationPaysUncoveredMonth(t *testing.T) {
	// GIVEN: A grant covering January through March and a simulation that
	//        also disburses in April, outside the timeline
	// THEN: Exactly one TypeMismatch for April carrying the simulated side

	clock := testClock()
	grant := payline.NewLine(span(date(2024, time.January, 1), date(2024, time.March, 31)), amt(1000), clock())
	segment, err := payline.Reconcile([]payline.PaymentLine{grant}, nil, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checker := payline.NewCrossChecker(fixedSimulator(payline.SimulationResult{
		Months: []payline.SimulatedMonth{
			simMonth(2024, time.January, 1000, 0),
			simMonth(2024, time.February, 1000, 0),
			simMonth(2024, time.March, 1000, 0),
			simMonth(2024, time.April, 1000, 0),
		},
	}))
	err = checker.Validate(context.Background(), grant.Period, segment, nil)

	var cce *payline.CrossCheckError
	if !errors.As(err, &cce) {
		t.Fatalf("expected CrossCheckError, got %v", err)
	}
	if len(cce.Discrepancies) != 1 {
		t.Fatalf("expected exactly one discrepancy, got %d", len(cce.Discrepancies))
	}
	d := cce.Discrepancies[0]
	if d.Kind != payline.DiscrepancyTypeMismatch {
		t.Errorf("expected type mismatch, got %s", d.Kind)
	}
	if d.Month != payline.MonthOf(date(2024, time.April, 1)) {
		t.Errorf("expected April, got %s", d.Month)
	}
	if !d.SimulatedAmount.Equal(amt(1000)) {
		t.Errorf("expected simulated amount 1000, got %s", d.SimulatedAmount)
	}
}

func TestValidate_AmountDrift(t *testing.T) {
	// GIVEN: Timeline reporting 5000 for May, simulation reporting 4500
	// THEN: Exactly one AmountMismatch for May carrying both values

	clock := testClock()
	grant := payline.NewLine(span(date(2024, time.May, 1), date(2024, time.May, 31)), amt(5000), clock())
	segment, err := payline.Reconcile([]payline.PaymentLine{grant}, nil, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checker := payline.NewCrossChecker(fixedSimulator(payline.SimulationResult{
		Months: []payline.SimulatedMonth{simMonth(2024, time.May, 4500, 0)},
	}))
	err = checker.Validate(context.Background(), grant.Period, segment, nil)

	var cce *payline.CrossCheckError
	if !errors.As(err, &cce) {
		t.Fatalf("expected CrossCheckError, got %v", err)
	}
	if len(cce.Discrepancies) != 1 {
		t.Fatalf("expected exactly one discrepancy, got %d", len(cce.Discrepancies))
	}
	d := cce.Discrepancies[0]
	if d.Kind != payline.DiscrepancyAmountMismatch {
		t.Errorf("expected amount mismatch, got %s", d.Kind)
	}
	if !d.TimelineAmount.Equal(amt(5000)) || !d.SimulatedAmount.Equal(amt(4500)) {
		t.Errorf("expected (5000, 4500), got (%s, %s)", d.TimelineAmount, d.SimulatedAmount)
	}
	if d.Month != payline.MonthOf(date(2024, time.May, 1)) {
		t.Errorf("expected May, got %s", d.Month)
	}
}

func TestValidate_OverpaymentDuringStopOutranksAmountMismatch(t *testing.T) {
	// All discrepancies are collected and sorted by severity: the June
	// overpayment-during-stop comes before the July amount mismatch even
	// though July's mismatch is also present.

	clock := testClock()
	newLine := payline.NewLine(span(date(2024, time.January, 1), date(2024, time.December, 31)), amt(1000), clock())
	existing := chainOf(newLine)
	stop := payline.StopLine(existing[0], date(2024, time.June, 1), clock())
	segment, err := payline.Reconcile([]payline.PaymentLine{stop}, existing, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checker := payline.NewCrossChecker(fixedSimulator(payline.SimulationResult{
		Months: []payline.SimulatedMonth{
			simMonth(2024, time.July, 1000, 0), // pays during stop
			simMonth(2024, time.June, 0, 500),  // overpayment during stop
		},
	}))
	err = checker.Validate(context.Background(), stop.Period, segment, existing)

	var cce *payline.CrossCheckError
	if !errors.As(err, &cce) {
		t.Fatalf("expected CrossCheckError, got %v", err)
	}
	if len(cce.Discrepancies) != 2 {
		t.Fatalf("expected 2 discrepancies, got %d", len(cce.Discrepancies))
	}
	if cce.Discrepancies[0].Kind != payline.DiscrepancyStopOverpayment {
		t.Errorf("expected overpayment-during-stop first, got %s", cce.Discrepancies[0].Kind)
	}
	if cce.Discrepancies[1].Kind != payline.DiscrepancyAmountMismatch {
		t.Errorf("expected amount mismatch second, got %s", cce.Discrepancies[1].Kind)
	}
}

func TestValidate_OverpaymentDuringResume(t *testing.T) {
	clock := testClock()
	newLine := payline.NewLine(span(date(2024, time.January, 1), date(2024, time.December, 31)), amt(1000), clock())
	stop := payline.StopLine(newLine, date(2024, time.June, 1), clock())
	existing := chainOf(newLine, stop)

	resume := payline.ResumeLine(newLine, date(2024, time.September, 1), clock())
	segment, err := payline.Reconcile([]payline.PaymentLine{resume}, existing, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checker := payline.NewCrossChecker(fixedSimulator(payline.SimulationResult{
		Months: []payline.SimulatedMonth{simMonth(2024, time.September, 1000, 250)},
	}))
	err = checker.Validate(context.Background(), resume.Period, segment, existing)

	var cce *payline.CrossCheckError
	if !errors.As(err, &cce) {
		t.Fatalf("expected CrossCheckError, got %v", err)
	}
	if cce.Discrepancies[0].Kind != payline.DiscrepancyResumeOverpayment {
		t.Errorf("expected overpayment-during-resume, got %s", cce.Discrepancies[0].Kind)
	}
}

// =============================================================================
// FAILURE PROPAGATION TESTS
// =============================================================================

func TestValidate_SimulationFailurePropagates(t *testing.T) {
	failing := payline.SimulatorFunc(
		func(ctx context.Context, lines []payline.PaymentLine, period payline.Period) (payline.SimulationResult, error) {
			return payline.SimulationResult{}, fmt.Errorf("oracle unavailable")
		})

	clock := testClock()
	grant := payline.NewLine(span(date(2024, time.January, 1), date(2024, time.June, 30)), amt(1000), clock())
	segment, err := payline.Reconcile([]payline.PaymentLine{grant}, nil, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checker := payline.NewCrossChecker(failing)
	err = checker.Validate(context.Background(), grant.Period, segment, nil)
	if !errors.Is(err, payline.ErrSimulationFailed) {
		t.Fatalf("expected ErrSimulationFailed, got %v", err)
	}
}

func TestValidate_UnresolvableTimelinePropagates(t *testing.T) {
	clock := testClock()
	// Two roots: the candidate does not weld onto the existing history.
	orphanA := payline.NewLine(span(date(2024, time.January, 1), date(2024, time.June, 30)), amt(1000), clock())
	orphanB := payline.NewLine(span(date(2024, time.July, 1), date(2024, time.December, 31)), amt(1000), clock())

	checker := payline.NewCrossChecker(emptySimulator)
	err := checker.Validate(context.Background(), orphanA.Period,
		[]payline.PaymentLine{orphanA}, []payline.PaymentLine{orphanB})
	if !errors.Is(err, payline.ErrChainUnresolvable) {
		t.Fatalf("expected ErrChainUnresolvable, got %v", err)
	}
}

// =============================================================================
// RECONSTRUCTED PERIOD TESTS
// =============================================================================

func TestValidate_ReconstructedPeriodDiverged(t *testing.T) {
	// GIVEN: Existing history running through December, a candidate
	//        segment that only covers through June and carries no
	//        reconstruction of the rest
	// THEN: The unaffected-future check fails fatally

	clock := testClock()
	existing := chainOf(
		payline.NewLine(span(date(2024, time.January, 1), date(2024, time.December, 31)), amt(1000), clock()),
	)

	b := payline.NewChainBuilder(existing[0].ID)
	candidate := b.Append(payline.NewLine(span(date(2024, time.January, 1), date(2024, time.June, 30)), amt(2000), clock()))

	checker := payline.NewCrossChecker(fixedSimulator(payline.SimulationResult{
		Months: []payline.SimulatedMonth{
			simMonth(2024, time.January, 2000, 0), simMonth(2024, time.February, 2000, 0),
			simMonth(2024, time.March, 2000, 0), simMonth(2024, time.April, 2000, 0),
			simMonth(2024, time.May, 2000, 0), simMonth(2024, time.June, 2000, 0),
		},
	}))
	err := checker.Validate(context.Background(), candidate.Period, b.Lines(), existing)
	if !errors.Is(err, payline.ErrReconstructedPeriodDiverged) {
		t.Fatalf("expected ErrReconstructedPeriodDiverged, got %v", err)
	}
	var rpe *payline.ReconstructedPeriodError
	if !errors.As(err, &rpe) {
		t.Fatalf("expected ReconstructedPeriodError, got %v", err)
	}
	if !rpe.Window.Start.Equal(date(2024, time.July, 1)) {
		t.Errorf("expected window starting Jul 1, got %s", rpe.Window.Start)
	}
}

func TestValidate_ReconciledSegmentPassesReconstructedCheck(t *testing.T) {
	// The reconciler's rebuilt tail is exactly what makes the
	// unaffected-future check pass.

	clock := testClock()
	existing := chainOf(
		payline.NewLine(span(date(2024, time.January, 1), date(2024, time.December, 31)), amt(1000), clock()),
	)
	grant := payline.NewLine(span(date(2024, time.January, 1), date(2024, time.June, 30)), amt(2000), clock())
	segment, err := payline.Reconcile([]payline.PaymentLine{grant}, existing, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	months := []payline.SimulatedMonth{}
	for m := time.January; m <= time.June; m++ {
		months = append(months, simMonth(2024, m, 2000, 0))
	}
	for m := time.July; m <= time.December; m++ {
		months = append(months, simMonth(2024, m, 1000, 0))
	}

	checker := payline.NewCrossChecker(fixedSimulator(payline.SimulationResult{Months: months}))
	if err := checker.Validate(context.Background(), grant.Period, segment, existing); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}
