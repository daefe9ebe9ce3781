/*
simulation.go - External simulation oracle contract

PURPOSE:
  The external accounting system can simulate what it would actually
  disburse if a candidate set of payment lines were submitted. The engine
  treats that call as an opaque synchronous oracle and only depends on
  the functional contract defined here; transport, authentication and
  the accounting protocol's wire format live with the caller.
*/
package payline

import "context"

// SimulatedMonth is the oracle's verdict for one calendar month: the
// amount it would disburse, and any already-over-paid amount it
// detected for that month.
type SimulatedMonth struct {
	Month       Month
	Amount      Amount
	Overpayment Amount
}

// IsTrivial reports whether the month carries neither a disbursement nor
// an overpayment.
func (m SimulatedMonth) IsTrivial() bool {
	return m.Amount.IsZero() && m.Overpayment.IsZero()
}

// SimulationResult is the oracle's month-by-month view over the
// simulated span.
type SimulationResult struct {
	Months []SimulatedMonth
}

// IsEmpty reports whether the simulation shows no disbursement and no
// overpayment anywhere in the span.
func (r SimulationResult) IsEmpty() bool {
	for _, m := range r.Months {
		if !m.IsTrivial() {
			return false
		}
	}
	return true
}

// ForMonth returns the simulated verdict for a month, false if the
// oracle reported nothing for it.
func (r SimulationResult) ForMonth(month Month) (SimulatedMonth, bool) {
	for _, m := range r.Months {
		if m.Month == month {
			return m, true
		}
	}
	return SimulatedMonth{}, false
}

// TotalDisbursed sums the simulated disbursements across the span.
func (r SimulationResult) TotalDisbursed() Amount {
	total := ZeroAmount()
	for _, m := range r.Months {
		total = total.Add(m.Amount)
	}
	return total
}

// Simulator is the injected oracle. Implementations are synchronous;
// timeouts and retries belong to the caller, typically via ctx. Any
// returned error is terminal for the invocation - the engine never
// retries internally.
type Simulator interface {
	Simulate(ctx context.Context, lines []PaymentLine, period Period) (SimulationResult, error)
}

// SimulatorFunc adapts a function to the Simulator interface.
type SimulatorFunc func(ctx context.Context, lines []PaymentLine, period Period) (SimulationResult, error)

func (f SimulatorFunc) Simulate(ctx context.Context, lines []PaymentLine, period Period) (SimulationResult, error) {
	return f(ctx, lines, period)
}
