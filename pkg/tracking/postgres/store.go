// Package postgres provides transactional PostgreSQL storage for task
// sessions. A partial unique index over open rows per user backs the
// one-open-session invariant independently of the Manager.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/txn2/timetrack/pkg/tracking"
)

// uniqueViolation is the PostgreSQL error code raised when the partial
// unique index rejects a second open session for a user.
const uniqueViolation = "23505"

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// sessionColumns lists columns returned by session SELECT queries.
var sessionColumns = []string{"id", "user_id", "task_id", "started_at", "ended_at"}

// Store implements tracking.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL session store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// StartSession closes the user's open session (if any) at the given instant
// and inserts a new open session, in one transaction.
func (s *Store) StartSession(ctx context.Context, userID, taskID string, now time.Time) (*tracking.Session, *tracking.Session, error) {
	now = now.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	closeQuery := `
		UPDATE task_sessions SET ended_at = $2
		WHERE user_id = $1 AND ended_at IS NULL
		RETURNING id, user_id, task_id, started_at, ended_at
	`
	previous, err := scanSession(tx.QueryRowContext(ctx, closeQuery, userID, now))
	if err != nil {
		return nil, nil, fmt.Errorf("closing previous session: %w", err)
	}

	started := &tracking.Session{
		ID:       uuid.NewString(),
		UserID:   userID,
		TaskID:   taskID,
		Interval: tracking.OpenSince(now),
	}
	insertQuery := `
		INSERT INTO task_sessions (id, user_id, task_id, started_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := tx.ExecContext(ctx, insertQuery, started.ID, userID, taskID, now); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, nil, tracking.ErrSessionConflict
		}
		return nil, nil, fmt.Errorf("inserting session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("committing start transaction: %w", err)
	}
	return started, previous, nil
}

// EndSession closes the user's open session at the given instant. The
// single guarded UPDATE makes the check-then-write atomic.
func (s *Store) EndSession(ctx context.Context, userID string, now time.Time) (*tracking.Session, error) {
	query := `
		UPDATE task_sessions SET ended_at = $2
		WHERE user_id = $1 AND ended_at IS NULL
		RETURNING id, user_id, task_id, started_at, ended_at
	`
	sess, err := scanSession(s.db.QueryRowContext(ctx, query, userID, now.UTC()))
	if err != nil {
		return nil, fmt.Errorf("ending session: %w", err)
	}
	if sess == nil {
		return nil, tracking.ErrNoOpenSession
	}
	return sess, nil
}

// ActiveSession returns the user's open session, or nil, nil when none.
func (s *Store) ActiveSession(ctx context.Context, userID string) (*tracking.Session, error) {
	query := `
		SELECT id, user_id, task_id, started_at, ended_at
		FROM task_sessions
		WHERE user_id = $1 AND ended_at IS NULL
	`
	sess, err := scanSession(s.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("loading active session: %w", err)
	}
	return sess, nil
}

// ListSessions returns sessions matching the filter, ordered by start.
func (s *Store) ListSessions(ctx context.Context, filter tracking.Filter) ([]*tracking.Session, error) {
	qb := psq.Select(sessionColumns...).From("task_sessions").OrderBy("started_at")
	if filter.UserID != "" {
		qb = qb.Where(sq.Eq{"user_id": filter.UserID})
	}
	if filter.TaskID != "" {
		qb = qb.Where(sq.Eq{"task_id": filter.TaskID})
	}
	if filter.OnlyOpen {
		qb = qb.Where("ended_at IS NULL")
	}
	if !filter.StartedAfter.IsZero() {
		qb = qb.Where(sq.GtOrEq{"started_at": filter.StartedAfter})
	}
	if !filter.StartedBefore.IsZero() {
		qb = qb.Where(sq.Lt{"started_at": filter.StartedBefore})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building session list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*tracking.Session
	for rows.Next() {
		sess, err := scanSessionRow(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session rows: %w", err)
	}
	return sessions, nil
}

// CloseSessions applies the closures in one transaction. The guard on
// ended_at means re-applying a closure writes nothing, and a row closed by
// a concurrent request is left alone.
func (s *Store) CloseSessions(ctx context.Context, closures []tracking.Closure) error {
	if len(closures) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning close transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		UPDATE task_sessions SET ended_at = $2
		WHERE id = $1 AND ended_at IS NULL
	`
	for _, c := range closures {
		if _, err := tx.ExecContext(ctx, query, c.SessionID, c.End.UTC()); err != nil {
			return fmt.Errorf("closing session %s: %w", c.SessionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing close transaction: %w", err)
	}
	return nil
}

// Close releases store resources.
func (s *Store) Close() error {
	return nil
}

func scanSession(row *sql.Row) (*tracking.Session, error) {
	var (
		sess    tracking.Session
		started time.Time
		ended   sql.NullTime
	)
	err := row.Scan(&sess.ID, &sess.UserID, &sess.TaskID, &started, &ended)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	if err := setInterval(&sess, started, ended); err != nil {
		return nil, err
	}
	return &sess, nil
}

func scanSessionRow(rows *sql.Rows) (*tracking.Session, error) {
	var (
		sess    tracking.Session
		started time.Time
		ended   sql.NullTime
	)
	if err := rows.Scan(&sess.ID, &sess.UserID, &sess.TaskID, &started, &ended); err != nil {
		return nil, fmt.Errorf("scanning session row: %w", err)
	}
	if err := setInterval(&sess, started, ended); err != nil {
		return nil, err
	}
	return &sess, nil
}

func setInterval(sess *tracking.Session, started time.Time, ended sql.NullTime) error {
	if !ended.Valid {
		sess.Interval = tracking.OpenSince(started)
		return nil
	}
	iv, err := tracking.ClosedSpan(started, ended.Time)
	if err != nil {
		return fmt.Errorf("row %s: %w", sess.ID, err)
	}
	sess.Interval = iv
	return nil
}

// Verify interface compliance.
var _ tracking.Store = (*Store)(nil)
