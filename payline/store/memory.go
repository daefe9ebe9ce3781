// Package store provides HistoryStore implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/payline-engine/payline"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	lines map[payline.CaseID][]payline.PaymentLine
}

func NewMemory() *Memory {
	return &Memory{lines: make(map[payline.CaseID][]payline.PaymentLine)}
}

// Load returns a copy of the case history so callers can never mutate
// the stored sequence.
func (m *Memory) Load(_ context.Context, caseID payline.CaseID) ([]payline.PaymentLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored := m.lines[caseID]
	out := make([]payline.PaymentLine, len(stored))
	copy(out, stored)
	return out, nil
}

// Append adds a segment to the case history. Append-only.
func (m *Memory) Append(_ context.Context, caseID payline.CaseID, lines []payline.PaymentLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines[caseID] = append(m.lines[caseID], lines...)
	return nil
}
