/*
chain.go - Linked-list ordering of payment lines

PURPOSE:
  The authoritative order of a case's payment history is not slice order
  but the causal chain formed by each line's PreviousID reference.
  ResolveChain reconstructs that order from an arbitrarily ordered slice;
  ChainAppend is the single place where PreviousID pointers are written.

CHAIN SHAPE:
  A valid chain is a simple linked list:
    root <- line <- line <- ... <- tail
  The root is the one line whose PreviousID is empty or references a line
  outside the given set (the weld point onto an older history segment).
  Trees, forks and cycles are rejected.

APPEND SEMANTICS:
  Appending always rewrites the appended line's PreviousID to the current
  tail, regardless of what the caller set. This is deliberate: callers
  construct lines without knowing where in the chain they will land, and
  the rewiring is explicit here rather than hidden inside a collection
  type's insertion method.
*/
package payline

// ChainAppend chains line onto the list ending at tail: it rewrites the
// line's PreviousID to tail and returns the chained copy together with
// the new tail id. An empty tail starts a fresh chain.
func ChainAppend(tail LineID, line PaymentLine) (PaymentLine, LineID) {
	line.PreviousID = tail
	return line, line.ID
}

// ChainBuilder accumulates lines via ChainAppend, tracking the tail.
type ChainBuilder struct {
	tail  LineID
	lines []PaymentLine
}

// NewChainBuilder starts a builder welded onto an existing chain's tail.
// Pass an empty id to start a brand new chain.
func NewChainBuilder(tail LineID) *ChainBuilder {
	return &ChainBuilder{tail: tail}
}

// Append chains the line onto the current tail and returns the chained copy.
func (b *ChainBuilder) Append(line PaymentLine) PaymentLine {
	chained, tail := ChainAppend(b.tail, line)
	b.tail = tail
	b.lines = append(b.lines, chained)
	return chained
}

func (b *ChainBuilder) Tail() LineID { return b.tail }

// Lines returns the accumulated lines in chain order.
func (b *ChainBuilder) Lines() []PaymentLine { return b.lines }

// ResolveChain orders lines by following PreviousID references from the
// root forward. The input may be in any order. Returns a ChainError when
// the set has no root, several roots, a shared predecessor, or a cycle.
func ResolveChain(lines []PaymentLine) ([]PaymentLine, error) {
	if len(lines) == 0 {
		return nil, nil
	}

	byID := make(map[LineID]PaymentLine, len(lines))
	for _, l := range lines {
		if _, dup := byID[l.ID]; dup {
			return nil, &ChainError{Reason: "duplicate line id", LineID: l.ID}
		}
		byID[l.ID] = l
	}

	// successor[p] is the line whose PreviousID is p. A second claimant
	// for the same predecessor means the chain forks.
	successor := make(map[LineID]PaymentLine, len(lines))
	var root *PaymentLine
	for _, l := range lines {
		l := l
		if _, inSet := byID[l.PreviousID]; l.PreviousID == "" || !inSet {
			if root != nil {
				return nil, &ChainError{Reason: "multiple roots", LineID: l.ID}
			}
			root = &l
			continue
		}
		if _, taken := successor[l.PreviousID]; taken {
			return nil, &ChainError{Reason: "duplicate predecessor", LineID: l.ID}
		}
		successor[l.PreviousID] = l
	}
	if root == nil {
		// Every line points at another line in the set: a cycle.
		return nil, &ChainError{Reason: "cycle"}
	}

	ordered := make([]PaymentLine, 0, len(lines))
	ordered = append(ordered, *root)
	current := root.ID
	for {
		next, ok := successor[current]
		if !ok {
			break
		}
		ordered = append(ordered, next)
		current = next.ID
	}
	if len(ordered) != len(lines) {
		// Unreachable lines form a disconnected cycle.
		return nil, &ChainError{Reason: "cycle"}
	}
	return ordered, nil
}

// ChainTail resolves the chain and returns the id of its last line.
// Returns an empty id for an empty history.
func ChainTail(lines []PaymentLine) (LineID, error) {
	ordered, err := ResolveChain(lines)
	if err != nil {
		return "", err
	}
	if len(ordered) == 0 {
		return "", nil
	}
	return ordered[len(ordered)-1].ID, nil
}
