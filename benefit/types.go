/*
Package benefit orchestrates payment changes for recurring benefit cases.

PURPOSE:
  The payline engine is a set of pure functions; this package is the
  caller the engine is written for. It owns the per-case locking, loads
  and persists histories through a payline.HistoryStore, turns
  case-level change requests (grant, stop, resume, write-off) into
  candidate payment lines, and runs the reconcile + cross-check cycle
  before anything is committed.

WHAT IT DOES NOT DO:
  No benefit amount calculation, no tax, no case workflow state. Those
  decide WHEN a change happens; this package only handles HOW the change
  reconciles with history and whether the accounting system agrees.
*/
package benefit

import (
	"errors"

	"github.com/warp/payline-engine/payline"
)

// =============================================================================
// CHANGE REQUESTS
// =============================================================================

// ChangeKind is the case-level operation being applied to ongoing payments.
type ChangeKind string

const (
	// ChangeGrant establishes a new payment amount over a period.
	ChangeGrant ChangeKind = "grant"
	// ChangeStop halts payments from a date onward.
	ChangeStop ChangeKind = "stop"
	// ChangeResume reinstates stopped payments from a date onward.
	ChangeResume ChangeKind = "resume"
	// ChangeWriteOff terminates the entitlement from a date onward.
	ChangeWriteOff ChangeKind = "write-off"
)

// ChangeRequest describes one proposed change to a case's payments.
type ChangeRequest struct {
	CaseID payline.CaseID
	Kind   ChangeKind

	// Grant only.
	Period payline.Period
	Amount payline.Amount

	// Stop / Resume / WriteOff only: effective-from date.
	From payline.Date

	// DryRun runs the full reconcile + cross-check cycle without
	// persisting anything.
	DryRun bool
}

// ChangeResult reports the outcome of an accepted change.
type ChangeResult struct {
	// Lines is the reconciled segment appended to the history (or that
	// would be appended, for a dry run).
	Lines []payline.PaymentLine

	// Timeline is the projection of the full merged history.
	Timeline *payline.Timeline

	// Committed is false for dry runs.
	Committed bool
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNoActiveLine is returned when a stop/resume/write-off has no New
	// line in the history covering its effective date.
	ErrNoActiveLine = errors.New("no payment line covers the change date")

	// ErrUnknownChangeKind is returned for a change kind outside the
	// closed set above.
	ErrUnknownChangeKind = errors.New("unknown change kind")

	// ErrInvalidRequest is returned when a request's fields do not fit
	// its kind (missing period, zero date, invalid period).
	ErrInvalidRequest = errors.New("invalid change request")
)
