/*
Package payline implements the payment-line reconciliation engine.

PURPOSE:
  This package contains the core types and algorithms for managing the
  chained history of disbursement instructions behind a recurring benefit.
  Before any change to ongoing payments is sent to the external accounting
  system, the engine merges the proposed lines with the existing history
  (Reconcile), projects the result onto a per-month Timeline (Project),
  and cross-checks it against the accounting system's own simulation
  (CrossChecker.Validate).

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A signed monetary quantity (decimal, never float)
  - PaymentLine: An immutable disbursement instruction over a date range
  - LineKind: New / Stop / Resume / Cancel variants
  - CaseID/LineID: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Immutability: Payment lines are never modified, only superseded by
     new lines chained onto the history
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Causality: Every line carries a back-reference to its predecessor,
     so the history forms a simple linked list
  4. Purity: The engine is a set of side-effect-free functions plus two
     injected collaborators (Simulator, TimestampFunc)

SEE ALSO:
  - chain.go: Chain resolution and the auto-chaining append
  - timeline.go: Per-month projection of a chain
  - reconcile.go: Merging new lines with existing history
  - crosscheck.go: Validation against the external simulation
*/
package payline

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Signed monetary quantity
// =============================================================================

type Amount struct {
	Value decimal.Decimal
}

func NewAmount(value int64) Amount {
	return Amount{Value: decimal.NewFromInt(value)}
}

func ZeroAmount() Amount {
	return Amount{Value: decimal.Zero}
}

// ParseAmount parses a decimal string. External data (API payloads,
// oracle responses, stored rows) must come through here so a garbled
// amount surfaces as an error instead of a silent zero.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Amount{Value: d}, nil
}

// MustParseAmount is for literals whose validity is known at the call
// site. It panics on a malformed string.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Add(b Amount) Amount      { return Amount{Value: a.Value.Add(b.Value)} }
func (a Amount) Sub(b Amount) Amount      { return Amount{Value: a.Value.Sub(b.Value)} }
func (a Amount) Neg() Amount              { return Amount{Value: a.Value.Neg()} }
func (a Amount) IsZero() bool             { return a.Value.IsZero() }
func (a Amount) IsNegative() bool         { return a.Value.IsNegative() }
func (a Amount) IsPositive() bool         { return a.Value.IsPositive() }
func (a Amount) Equal(b Amount) bool      { return a.Value.Equal(b.Value) }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool   { return a.Value.LessThan(b.Value) }
func (a Amount) String() string           { return a.Value.String() }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CaseID string
type LineID string

// NewLineID mints a fresh, globally unique line identity.
func NewLineID() LineID {
	return LineID(uuid.NewString())
}

// =============================================================================
// LINE KIND - Closed set of payment line variants
// =============================================================================

// LineKind distinguishes the four payment line variants. New establishes a
// fresh amount for a period; the three change kinds modify a previously
// established New line's effect from a given date onward.
//
// Every switch over LineKind must handle all four kinds so that adding a
// kind is a compile-time-visible change everywhere it is dispatched.
type LineKind int

const (
	KindNew LineKind = iota
	KindStop
	KindResume
	KindCancel
)

func (k LineKind) String() string {
	switch k {
	case KindNew:
		return "new"
	case KindStop:
		return "stop"
	case KindResume:
		return "resume"
	case KindCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// IsChange reports whether the kind modifies a prior New line.
func (k LineKind) IsChange() bool {
	return k == KindStop || k == KindResume || k == KindCancel
}

// =============================================================================
// PAYMENT LINE - Immutable disbursement instruction
// =============================================================================

// PaymentLine is one contiguous instruction to pay (or stop/resume/cancel
// paying) a fixed amount over an inclusive date range.
//
// INVARIANTS:
//   - Never mutated after creation; any "change" is a new line with a new
//     id referencing its predecessor via PreviousID.
//   - PreviousID forms a simple linked list over the case history: every
//     line except the very first points at exactly one predecessor, and no
//     two lines share a predecessor.
//   - TargetID is set on change kinds only and references the New line the
//     change modifies (not necessarily the immediate predecessor).
type PaymentLine struct {
	ID        LineID
	Kind      LineKind
	CreatedAt time.Time

	// Effective period. For change kinds this is the sub-range of the
	// target line over which the change applies.
	Period Period

	// Signed amount per month. Zero for stops and cancels. Resume lines
	// carry the reinstated amount so they project correctly even when
	// their target is not part of the projected set.
	Amount Amount

	PreviousID LineID
	TargetID   LineID
}

// NewLine creates a New payment line establishing amount over period.
// PreviousID is assigned later by the chaining append.
func NewLine(period Period, amount Amount, createdAt time.Time) PaymentLine {
	return PaymentLine{
		ID:        NewLineID(),
		Kind:      KindNew,
		CreatedAt: createdAt,
		Period:    period,
		Amount:    amount,
	}
}

// StopLine creates a Stop change zeroing out target from a given date
// through the end of the target's period.
func StopLine(target PaymentLine, from Date, createdAt time.Time) PaymentLine {
	return PaymentLine{
		ID:        NewLineID(),
		Kind:      KindStop,
		CreatedAt: createdAt,
		Period:    Period{Start: from, End: target.Period.End},
		Amount:    ZeroAmount(),
		TargetID:  target.ID,
	}
}

// ResumeLine creates a Resume change reinstating target's amount from a
// given date through the end of the target's period.
func ResumeLine(target PaymentLine, from Date, createdAt time.Time) PaymentLine {
	return PaymentLine{
		ID:        NewLineID(),
		Kind:      KindResume,
		CreatedAt: createdAt,
		Period:    Period{Start: from, End: target.Period.End},
		Amount:    target.Amount,
		TargetID:  target.ID,
	}
}

// CancelLine creates a Cancel change terminating target from a given date
// through the end of the target's period.
func CancelLine(target PaymentLine, from Date, createdAt time.Time) PaymentLine {
	return PaymentLine{
		ID:        NewLineID(),
		Kind:      KindCancel,
		CreatedAt: createdAt,
		Period:    Period{Start: from, End: target.Period.End},
		Amount:    ZeroAmount(),
		TargetID:  target.ID,
	}
}

// =============================================================================
// TIMESTAMP GENERATION
// =============================================================================

// TimestampFunc supplies creation timestamps for newly minted lines.
// Implementations must return strictly increasing values across repeated
// calls within one Reconcile invocation; the reconciler calls it exactly
// once per line it creates.
type TimestampFunc func() time.Time

// MonotonicClock returns a TimestampFunc backed by the wall clock that
// never returns the same instant twice, even when called faster than the
// clock's resolution.
func MonotonicClock() TimestampFunc {
	var mu sync.Mutex
	var last time.Time
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := time.Now().UTC()
		if !now.After(last) {
			now = last.Add(time.Microsecond)
		}
		last = now
		return now
	}
}
