package payline

import "context"

// =============================================================================
// HISTORY STORE - Persistence of chained payment lines per case
// =============================================================================

// HistoryStore persists the ordered payment line history per case.
//
// INVARIANTS:
//   - Append-only: lines are never updated or deleted. A change to
//     ongoing payments is a new chained segment, never an edit.
//   - Load returns lines in the order they were appended, which for a
//     well-formed history coincides with chain order.
//
// The engine itself only operates on in-memory sequences; this interface
// is how the surrounding orchestration loads and commits them.
type HistoryStore interface {
	// Load returns the full payment line history for a case,
	// chronologically. An unknown case yields an empty history, not an
	// error.
	Load(ctx context.Context, caseID CaseID) ([]PaymentLine, error)

	// Append atomically adds a reconciled segment to the case history.
	// Called only after the cross-check has passed and the external
	// submission succeeded.
	Append(ctx context.Context, caseID CaseID, lines []PaymentLine) error
}
