/*
Package sqlite provides a SQLite-backed implementation of leave.Store.

PURPOSE:
  Implements BalanceStore and RequestStore using SQLite. In production the
  same patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  balances: One row per (employee_id, category) with a version column.
            Writes are guarded by "WHERE version = ?" so lost updates
            surface as ErrConcurrentModification instead of clobbering
            concurrent reservations.
  requests: Full request history. Rows are never deleted; cancellation is a
            status change. Status writes are guarded by "WHERE status = ?"
            so concurrent decisions resolve to exactly one winner.

AMOUNTS:
  Balance and duration columns are stored as TEXT holding decimal strings,
  never floats. Half-days round-trip exactly.

WAL MODE:
  SQLite is opened with WAL for better concurrency: multiple readers don't
  block and crash recovery improves.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil { log.Fatal(err) }
  defer store.Close()
  ledger := leave.NewLedger(store, logger)
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/leave"
)

// Store implements leave.Store using SQLite.
type Store struct {
	db *sql.DB
}

var _ leave.Store = (*Store)(nil)

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

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS balances (
		employee_id TEXT NOT NULL,
		category    TEXT NOT NULL,
		allocated   TEXT NOT NULL,
		used        TEXT NOT NULL,
		pending     TEXT NOT NULL,
		version     INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (employee_id, category)
	);

	CREATE TABLE IF NOT EXISTS requests (
		id            TEXT PRIMARY KEY,
		employee_id   TEXT NOT NULL,
		category      TEXT NOT NULL,
		start_date    TEXT NOT NULL,
		end_date      TEXT NOT NULL,
		half_day      INTEGER NOT NULL DEFAULT 0,
		duration      TEXT NOT NULL,
		reason        TEXT NOT NULL,
		status        TEXT NOT NULL,
		applied_at    TEXT NOT NULL,
		decided_by    TEXT,
		decided_at    TEXT,
		decision_note TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee
		ON requests(employee_id, applied_at DESC);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON requests(status, applied_at);
	-- Payroll reads approved requests overlapping a pay period (hot path).
	CREATE INDEX IF NOT EXISTS idx_requests_employee_status_dates
		ON requests(employee_id, status, start_date, end_date);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// BALANCE STORE
// =============================================================================

func (s *Store) GetBalance(ctx context.Context, employeeID string, category leave.Category) (leave.Balance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT employee_id, category, allocated, used, pending, version
		FROM balances WHERE employee_id = ? AND category = ?`,
		employeeID, string(category))

	b, err := scanBalance(row)
	if err == sql.ErrNoRows {
		return leave.Balance{}, &leave.NotFoundError{Kind: "balance", ID: employeeID + "/" + string(category)}
	}
	return b, err
}

func (s *Store) ListBalances(ctx context.Context, employeeID string) ([]leave.Balance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, category, allocated, used, pending, version
		FROM balances WHERE employee_id = ? ORDER BY category`,
		employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) CreateBalance(ctx context.Context, b leave.Balance) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO balances (employee_id, category, allocated, used, pending, version)
		VALUES (?, ?, ?, ?, ?, 1)`,
		b.EmployeeID, string(b.Category),
		b.Allocated.String(), b.Used.String(), b.Pending.String())
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint") {
		return &leave.ConflictError{Message: "balance row already exists"}
	}
	return err
}

func (s *Store) UpdateBalance(ctx context.Context, b leave.Balance, expectedVersion int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE balances
		SET allocated = ?, used = ?, pending = ?, version = version + 1
		WHERE employee_id = ? AND category = ? AND version = ?`,
		b.Allocated.String(), b.Used.String(), b.Pending.String(),
		b.EmployeeID, string(b.Category), expectedVersion)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return leave.ErrConcurrentModification
	}
	return nil
}

func (s *Store) ListEmployeeIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT employee_id FROM balances ORDER BY employee_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =============================================================================
// REQUEST STORE
// =============================================================================

func (s *Store) CreateRequest(ctx context.Context, r leave.Request) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests (id, employee_id, category, start_date, end_date,
			half_day, duration, reason, status, applied_at,
			decided_by, decided_at, decision_note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.EmployeeID, string(r.Category),
		r.StartDate.Format(dateFormat), r.EndDate.Format(dateFormat),
		boolToInt(r.HalfDay), r.Duration.String(), r.Reason, string(r.Status),
		r.AppliedAt.UTC().Format(time.RFC3339Nano),
		r.DecidedBy, timePtr(r.DecidedAt), r.DecisionNote)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint") {
		return &leave.ConflictError{RequestID: r.ID, Message: "request id already exists"}
	}
	return err
}

func (s *Store) GetRequest(ctx context.Context, id string) (leave.Request, error) {
	row := s.db.QueryRowContext(ctx, selectRequest+` WHERE id = ?`, id)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return leave.Request{}, &leave.NotFoundError{Kind: "request", ID: id}
	}
	return r, err
}

func (s *Store) UpdateRequest(ctx context.Context, r leave.Request, expected leave.Status) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE requests
		SET status = ?, decided_by = ?, decided_at = ?, decision_note = ?
		WHERE id = ? AND status = ?`,
		string(r.Status), r.DecidedBy, timePtr(r.DecidedAt), r.DecisionNote,
		r.ID, string(expected))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish a missing row from a lost race.
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM requests WHERE id = ?`, r.ID).Scan(&exists); err == sql.ErrNoRows {
			return &leave.NotFoundError{Kind: "request", ID: r.ID}
		}
		return leave.ErrConcurrentModification
	}
	return nil
}

func (s *Store) ListByEmployee(ctx context.Context, employeeID string) ([]leave.Request, error) {
	return s.queryRequests(ctx, selectRequest+` WHERE employee_id = ? ORDER BY applied_at DESC`, employeeID)
}

func (s *Store) ListByStatus(ctx context.Context, status leave.Status) ([]leave.Request, error) {
	return s.queryRequests(ctx, selectRequest+` WHERE status = ? ORDER BY applied_at`, string(status))
}

func (s *Store) ListApprovedInRange(ctx context.Context, employeeID string, from, to time.Time) ([]leave.Request, error) {
	return s.queryRequests(ctx, selectRequest+`
		WHERE employee_id = ? AND status = ? AND end_date >= ? AND start_date <= ?
		ORDER BY start_date`,
		employeeID, string(leave.StatusApproved),
		from.Format(dateFormat), to.Format(dateFormat))
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

const dateFormat = "2006-01-02"

const selectRequest = `
	SELECT id, employee_id, category, start_date, end_date, half_day,
		duration, reason, status, applied_at, decided_by, decided_at, decision_note
	FROM requests`

type scanner interface {
	Scan(dest ...any) error
}

func scanBalance(row scanner) (leave.Balance, error) {
	var b leave.Balance
	var category, allocated, used, pending string
	if err := row.Scan(&b.EmployeeID, &category, &allocated, &used, &pending, &b.Version); err != nil {
		return leave.Balance{}, err
	}
	b.Category = leave.Category(category)

	var err error
	if b.Allocated, err = decimal.NewFromString(allocated); err != nil {
		return leave.Balance{}, fmt.Errorf("corrupt allocated amount: %w", err)
	}
	if b.Used, err = decimal.NewFromString(used); err != nil {
		return leave.Balance{}, fmt.Errorf("corrupt used amount: %w", err)
	}
	if b.Pending, err = decimal.NewFromString(pending); err != nil {
		return leave.Balance{}, fmt.Errorf("corrupt pending amount: %w", err)
	}
	return b, nil
}

func scanRequest(row scanner) (leave.Request, error) {
	var r leave.Request
	var category, startDate, endDate, duration, status, appliedAt string
	var halfDay int
	var decidedBy, decidedAt, note sql.NullString

	err := row.Scan(&r.ID, &r.EmployeeID, &category, &startDate, &endDate, &halfDay,
		&duration, &r.Reason, &status, &appliedAt, &decidedBy, &decidedAt, &note)
	if err != nil {
		return leave.Request{}, err
	}

	r.Category = leave.Category(category)
	r.HalfDay = halfDay != 0
	r.Status = leave.Status(status)

	if r.StartDate, err = time.ParseInLocation(dateFormat, startDate, time.UTC); err != nil {
		return leave.Request{}, fmt.Errorf("corrupt start_date: %w", err)
	}
	if r.EndDate, err = time.ParseInLocation(dateFormat, endDate, time.UTC); err != nil {
		return leave.Request{}, fmt.Errorf("corrupt end_date: %w", err)
	}
	if r.Duration, err = decimal.NewFromString(duration); err != nil {
		return leave.Request{}, fmt.Errorf("corrupt duration: %w", err)
	}
	if r.AppliedAt, err = time.Parse(time.RFC3339Nano, appliedAt); err != nil {
		return leave.Request{}, fmt.Errorf("corrupt applied_at: %w", err)
	}

	if decidedBy.Valid {
		r.DecidedBy = &decidedBy.String
	}
	if decidedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, decidedAt.String)
		if err != nil {
			return leave.Request{}, fmt.Errorf("corrupt decided_at: %w", err)
		}
		r.DecidedAt = &t
	}
	if note.Valid {
		r.DecisionNote = &note.String
	}
	return r, nil
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]leave.Request, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}
