/*
errors.go - Centralized error types for the payline engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is / errors.As.

ERROR CATEGORIES (see also crosscheck.go for discrepancy kinds):
  1. Contract violations - Malformed input batches (caller bugs, but
     reported as typed errors rather than panics so malformed upstream
     data cannot crash the process)
  2. Chain errors - A line sequence that does not form a simple linked list
  3. Invariant failures - The reconciler's own postconditions failed;
     fatal, indicates a defect in the reconciliation logic itself
  4. External-dependency failures - The simulation oracle failed
  5. Consistency failures - The projected timeline and the simulation
     disagree; always carries the full discrepancy list

USAGE:
  if errors.Is(err, payline.ErrCrossCheckFailed) {
      var cce *payline.CrossCheckError
      errors.As(err, &cce)
      // inspect cce.Discrepancies
  }
*/
package payline

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrEmptyBatch is returned when Reconcile is called without new lines.
	ErrEmptyBatch = errors.New("empty batch of new payment lines")

	// ErrOverlappingPeriods is returned when two New lines in one batch
	// cover overlapping periods.
	ErrOverlappingPeriods = errors.New("overlapping periods in batch")

	// ErrDuplicateTimestamp is returned when two lines in one batch share
	// a creation timestamp, which would make chain order ambiguous.
	ErrDuplicateTimestamp = errors.New("duplicate creation timestamp in batch")

	// ErrInvalidPeriod is returned for a malformed period (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrChainUnresolvable is returned when a line sequence cannot be
	// ordered into a simple linked list via previous-line references.
	ErrChainUnresolvable = errors.New("payment line chain unresolvable")

	// ErrReconcileInvariant indicates a post-reconstruction check failed.
	// This is fatal: it means the reconciliation logic itself is broken,
	// and the operation must abort without submitting anything.
	ErrReconcileInvariant = errors.New("reconciliation invariant violated")

	// ErrSimulationFailed wraps a failure from the external simulation
	// oracle. Not retried inside the engine.
	ErrSimulationFailed = errors.New("simulation failed")

	// ErrCrossCheckFailed indicates the projected timeline and the
	// external simulation disagree. The change must not be submitted.
	ErrCrossCheckFailed = errors.New("cross-check failed")

	// ErrReconstructedPeriodDiverged indicates the candidate lines would
	// silently alter payments for periods they were not meant to touch.
	ErrReconstructedPeriodDiverged = errors.New("reconstructed period diverged")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ChainError describes why a sequence of lines is not a valid chain.
type ChainError struct {
	Reason string // "duplicate line id", "multiple roots", "duplicate predecessor", "cycle"
	LineID LineID // offending line, when identifiable
}

func (e *ChainError) Error() string {
	if e.LineID != "" {
		return fmt.Sprintf("chain unresolvable: %s (line %s)", e.Reason, e.LineID)
	}
	return fmt.Sprintf("chain unresolvable: %s", e.Reason)
}

func (e *ChainError) Unwrap() error { return ErrChainUnresolvable }

// OverlapError reports two overlapping New periods within one batch.
type OverlapError struct {
	A Period
	B Period
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("overlapping periods in batch: %s and %s", e.A, e.B)
}

func (e *OverlapError) Unwrap() error { return ErrOverlappingPeriods }

// InvariantError reports a failed reconciliation postcondition.
type InvariantError struct {
	Check  string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("reconciliation invariant %q violated: %s", e.Check, e.Detail)
}

func (e *InvariantError) Unwrap() error { return ErrReconcileInvariant }

// SimulationError wraps the underlying oracle failure.
type SimulationError struct {
	Err error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("simulation failed: %v", e.Err)
}

func (e *SimulationError) Unwrap() error { return ErrSimulationFailed }

// ReconstructedPeriodError reports the window over which the candidate
// chain and the existing history disagree about untouched future periods.
type ReconstructedPeriodError struct {
	Window Period
}

func (e *ReconstructedPeriodError) Error() string {
	return fmt.Sprintf("reconstructed period %s diverged from existing history", e.Window)
}

func (e *ReconstructedPeriodError) Unwrap() error { return ErrReconstructedPeriodDiverged }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsContractViolation returns true if the error is due to a malformed
// input batch rather than a runtime condition.
func IsContractViolation(err error) bool {
	return errors.Is(err, ErrEmptyBatch) ||
		errors.Is(err, ErrOverlappingPeriods) ||
		errors.Is(err, ErrDuplicateTimestamp) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsFatal returns true if the error indicates a defect in the engine or
// its inputs' integrity, as opposed to an expected business outcome.
func IsFatal(err error) bool {
	return errors.Is(err, ErrReconcileInvariant) ||
		errors.Is(err, ErrChainUnresolvable)
}
