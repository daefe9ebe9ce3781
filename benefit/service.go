/*
service.go - Case-level change orchestration

PURPOSE:
  Runs one full reconcile + cross-check cycle per change request,
  holding the case lock for its duration so no two reconciliations for
  the same case can interleave (the engine itself performs no locking).

FLOW:
  1. Lock the case
  2. Load the chained history
  3. Build the candidate payment line for the requested change
  4. Reconcile it with the history
  5. Cross-check the reconciled segment against the simulation oracle
  6. Persist the segment (unless dry run)

Any failure anywhere means nothing is persisted and nothing may be
submitted to the external payment system. Cross-check failures are never
retried here; the caller decides whether to rerun the whole operation.
*/
package benefit

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/warp/payline-engine/payline"
)

// Service applies change requests to case payment histories.
type Service struct {
	Store   payline.HistoryStore
	Checker *payline.CrossChecker
	Clock   payline.TimestampFunc
	Log     *zap.Logger

	mu        sync.Mutex
	caseLocks map[payline.CaseID]*sync.Mutex
}

func NewService(store payline.HistoryStore, sim payline.Simulator, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		Store:     store,
		Checker:   payline.NewCrossChecker(sim),
		Clock:     payline.MonotonicClock(),
		Log:       log,
		caseLocks: make(map[payline.CaseID]*sync.Mutex),
	}
}

// lockCase returns the mutex guarding one case's reconcile cycle.
func (s *Service) lockCase(caseID payline.CaseID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.caseLocks[caseID]
	if !ok {
		lock = &sync.Mutex{}
		s.caseLocks[caseID] = lock
	}
	return lock
}

// ApplyChange runs the full cycle for one change request.
func (s *Service) ApplyChange(ctx context.Context, req ChangeRequest) (*ChangeResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	lock := s.lockCase(req.CaseID)
	lock.Lock()
	defer lock.Unlock()

	history, err := s.Store.Load(ctx, req.CaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for case %s: %w", req.CaseID, err)
	}

	candidate, err := s.buildCandidate(req, history)
	if err != nil {
		return nil, err
	}

	segment, err := payline.Reconcile([]payline.PaymentLine{candidate}, history, s.Clock)
	if err != nil {
		return nil, err
	}

	if err := s.Checker.Validate(ctx, candidate.Period, segment, history); err != nil {
		s.Log.Warn("cross-check rejected change",
			zap.String("case", string(req.CaseID)),
			zap.String("kind", string(req.Kind)),
			zap.Error(err),
		)
		return nil, err
	}

	merged := append(append([]payline.PaymentLine{}, history...), segment...)
	timeline, err := payline.Project(merged)
	if err != nil {
		return nil, err
	}

	if !req.DryRun {
		if err := s.Store.Append(ctx, req.CaseID, segment); err != nil {
			return nil, fmt.Errorf("failed to persist segment for case %s: %w", req.CaseID, err)
		}
	}

	s.Log.Info("change applied",
		zap.String("case", string(req.CaseID)),
		zap.String("kind", string(req.Kind)),
		zap.Int("lines", len(segment)),
		zap.Bool("dry_run", req.DryRun),
	)
	return &ChangeResult{Lines: segment, Timeline: timeline, Committed: !req.DryRun}, nil
}

// History returns the case's stored payment lines in chain order.
func (s *Service) History(ctx context.Context, caseID payline.CaseID) ([]payline.PaymentLine, error) {
	history, err := s.Store.Load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return payline.ResolveChain(history)
}

// Timeline projects the case's stored history.
func (s *Service) Timeline(ctx context.Context, caseID payline.CaseID) (*payline.Timeline, error) {
	history, err := s.Store.Load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return payline.Project(history)
}

func validateRequest(req ChangeRequest) error {
	switch req.Kind {
	case ChangeGrant:
		if !req.Period.IsValid() {
			return fmt.Errorf("%w: grant requires a valid period", ErrInvalidRequest)
		}
	case ChangeStop, ChangeResume, ChangeWriteOff:
		if req.From.IsZero() {
			return fmt.Errorf("%w: %s requires an effective-from date", ErrInvalidRequest, req.Kind)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownChangeKind, req.Kind)
	}
	return nil
}

// buildCandidate turns the request into a single candidate payment line.
func (s *Service) buildCandidate(req ChangeRequest, history []payline.PaymentLine) (payline.PaymentLine, error) {
	switch req.Kind {
	case ChangeGrant:
		return payline.NewLine(req.Period, req.Amount, s.Clock()), nil
	case ChangeStop, ChangeResume, ChangeWriteOff:
		target, err := activeLineAt(history, req.From)
		if err != nil {
			return payline.PaymentLine{}, err
		}
		switch req.Kind {
		case ChangeStop:
			return payline.StopLine(target, req.From, s.Clock()), nil
		case ChangeResume:
			return payline.ResumeLine(target, req.From, s.Clock()), nil
		default:
			return payline.CancelLine(target, req.From, s.Clock()), nil
		}
	default:
		return payline.PaymentLine{}, fmt.Errorf("%w: %q", ErrUnknownChangeKind, req.Kind)
	}
}

// activeLineAt finds the most recent New line whose effect extends to or
// past the change date. Change lines target New lines, never each other.
func activeLineAt(history []payline.PaymentLine, from payline.Date) (payline.PaymentLine, error) {
	chain, err := payline.ResolveChain(history)
	if err != nil {
		return payline.PaymentLine{}, err
	}
	for i := len(chain) - 1; i >= 0; i-- {
		line := chain[i]
		if line.Kind == payline.KindNew && line.Period.End.AfterOrEqual(from) {
			return line, nil
		}
	}
	return payline.PaymentLine{}, fmt.Errorf("%w: %s", ErrNoActiveLine, from)
}
