/*
Package sqlite provides a SQLite-backed implementation of the payment
line history store.

PURPOSE:
  Implements payline.HistoryStore using SQLite. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  The store enforces append-only semantics:
  - No UPDATE statements on payment_lines
  - No DELETE statements on payment_lines
  Changes to ongoing payments are expressed as new chained lines, never
  as edits, so the table doubles as the case's audit trail.

KEY TABLE:
  payment_lines: one row per line, ordered per case by insertion
  position. Amounts are stored as decimal strings, dates as ISO days.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/payline.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - payline/store.go: Interface definition
  - payline/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/payline-engine/payline"
)

// Store implements payline.HistoryStore using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Payment lines (append-only chained history)
	CREATE TABLE IF NOT EXISTS payment_lines (
		position INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		case_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		created_at TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		amount TEXT NOT NULL,
		previous_id TEXT,
		target_id TEXT
	);

	-- Case history loads (hot path)
	CREATE INDEX IF NOT EXISTS idx_payment_lines_case
		ON payment_lines(case_id, position);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load returns the full payment line history for a case in append order.
func (s *Store) Load(ctx context.Context, caseID payline.CaseID) ([]payline.PaymentLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, created_at, period_start, period_end, amount, previous_id, target_id
		FROM payment_lines
		WHERE case_id = ?
		ORDER BY position`, string(caseID))
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	var lines []payline.PaymentLine
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// Append atomically adds a reconciled segment to the case history.
func (s *Store) Append(ctx context.Context, caseID payline.CaseID, lines []payline.PaymentLine) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO payment_lines
			(id, case_id, kind, created_at, period_start, period_end, amount, previous_id, target_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, line := range lines {
		_, err := stmt.ExecContext(ctx,
			string(line.ID),
			string(caseID),
			line.Kind.String(),
			line.CreatedAt.UTC().Format(time.RFC3339Nano),
			line.Period.Start.String(),
			line.Period.End.String(),
			line.Amount.String(),
			string(line.PreviousID),
			string(line.TargetID),
		)
		if err != nil {
			return fmt.Errorf("failed to insert line %s: %w", line.ID, err)
		}
	}
	return tx.Commit()
}

func scanLine(rows *sql.Rows) (payline.PaymentLine, error) {
	var (
		line                   payline.PaymentLine
		id, kind, createdAt    string
		periodStart, periodEnd string
		amount                 string
		previousID, targetID   string
	)
	if err := rows.Scan(&id, &kind, &createdAt, &periodStart, &periodEnd, &amount, &previousID, &targetID); err != nil {
		return payline.PaymentLine{}, fmt.Errorf("failed to scan line: %w", err)
	}

	line.ID = payline.LineID(id)
	line.PreviousID = payline.LineID(previousID)
	line.TargetID = payline.LineID(targetID)

	parsedKind, err := parseKind(kind)
	if err != nil {
		return payline.PaymentLine{}, err
	}
	line.Kind = parsedKind

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return payline.PaymentLine{}, fmt.Errorf("failed to parse created_at %q: %w", createdAt, err)
	}
	line.CreatedAt = ts

	start, err := payline.ParseDate(periodStart)
	if err != nil {
		return payline.PaymentLine{}, fmt.Errorf("failed to parse period_start %q: %w", periodStart, err)
	}
	end, err := payline.ParseDate(periodEnd)
	if err != nil {
		return payline.PaymentLine{}, fmt.Errorf("failed to parse period_end %q: %w", periodEnd, err)
	}
	line.Period = payline.Period{Start: start, End: end}

	parsedAmount, err := payline.ParseAmount(amount)
	if err != nil {
		return payline.PaymentLine{}, fmt.Errorf("failed to parse amount for line %s: %w", id, err)
	}
	line.Amount = parsedAmount
	return line, nil
}

func parseKind(s string) (payline.LineKind, error) {
	switch s {
	case "new":
		return payline.KindNew, nil
	case "stop":
		return payline.KindStop, nil
	case "resume":
		return payline.KindResume, nil
	case "cancel":
		return payline.KindCancel, nil
	default:
		return 0, fmt.Errorf("unknown line kind %q", s)
	}
}
