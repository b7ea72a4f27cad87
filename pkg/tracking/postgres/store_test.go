package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/timetrack/pkg/tracking"
)

var (
	startAt = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	endAt   = time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC)
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

func sessionRows(t *testing.T) *sqlmock.Rows {
	t.Helper()
	return sqlmock.NewRows([]string{"id", "user_id", "task_id", "started_at", "ended_at"})
}

func TestStartSession_NoPrevious(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE task_sessions SET ended_at = $2 WHERE user_id = $1 AND ended_at IS NULL RETURNING")).
		WithArgs("u1", startAt).
		WillReturnRows(sessionRows(t))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO task_sessions (id, user_id, task_id, started_at) VALUES ($1, $2, $3, $4)")).
		WithArgs(sqlmock.AnyArg(), "u1", "t1", startAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	started, previous, err := store.StartSession(context.Background(), "u1", "t1", startAt)
	require.NoError(t, err)
	assert.Nil(t, previous)
	assert.True(t, started.Open())
	assert.Equal(t, startAt, started.Interval.Start())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartSession_ClosesPrevious(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE task_sessions SET ended_at = $2 WHERE user_id = $1 AND ended_at IS NULL RETURNING")).
		WithArgs("u1", startAt).
		WillReturnRows(sessionRows(t).AddRow("prev-id", "u1", "t0", startAt.Add(-2*time.Hour), startAt))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO task_sessions")).
		WithArgs(sqlmock.AnyArg(), "u1", "t1", startAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	started, previous, err := store.StartSession(context.Background(), "u1", "t1", startAt)
	require.NoError(t, err)
	require.NotNil(t, previous)
	assert.Equal(t, "prev-id", previous.ID)
	end, ok := previous.Interval.End()
	require.True(t, ok)
	assert.Equal(t, startAt, end)
	assert.True(t, started.Open())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartSession_UniqueViolation(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE task_sessions SET ended_at = $2")).
		WithArgs("u1", startAt).
		WillReturnRows(sessionRows(t))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO task_sessions")).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, _, err := store.StartSession(context.Background(), "u1", "t1", startAt)
	assert.ErrorIs(t, err, tracking.ErrSessionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEndSession(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE task_sessions SET ended_at = $2 WHERE user_id = $1 AND ended_at IS NULL RETURNING")).
		WithArgs("u1", endAt).
		WillReturnRows(sessionRows(t).AddRow("s1", "u1", "t1", startAt, endAt))

	sess, err := store.EndSession(context.Background(), "u1", endAt)
	require.NoError(t, err)
	assert.Equal(t, "s1", sess.ID)
	assert.False(t, sess.Open())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEndSession_NoneOpen(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE task_sessions SET ended_at = $2")).
		WithArgs("u1", endAt).
		WillReturnRows(sessionRows(t))

	_, err := store.EndSession(context.Background(), "u1", endAt)
	assert.ErrorIs(t, err, tracking.ErrNoOpenSession)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveSession(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, task_id, started_at, ended_at FROM task_sessions WHERE user_id = $1 AND ended_at IS NULL")).
		WithArgs("u1").
		WillReturnRows(sessionRows(t).AddRow("s1", "u1", "t1", startAt, nil))

	sess, err := store.ActiveSession(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.True(t, sess.Open())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveSession_None(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, task_id, started_at, ended_at FROM task_sessions")).
		WithArgs("u1").
		WillReturnRows(sessionRows(t))

	sess, err := store.ActiveSession(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSessions_FilterSQL(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, task_id, started_at, ended_at FROM task_sessions WHERE user_id = $1 AND ended_at IS NULL ORDER BY started_at")).
		WithArgs("u1").
		WillReturnRows(sessionRows(t).
			AddRow("s1", "u1", "t1", startAt, nil))

	sessions, err := store.ListSessions(context.Background(), tracking.Filter{UserID: "u1", OnlyOpen: true})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s1", sessions[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSessions_WindowFilter(t *testing.T) {
	store, mock := newMock(t)

	from := startAt.Truncate(24 * time.Hour)
	to := from.AddDate(0, 0, 1)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, task_id, started_at, ended_at FROM task_sessions WHERE started_at >= $1 AND started_at < $2 ORDER BY started_at")).
		WithArgs(from, to).
		WillReturnRows(sessionRows(t).
			AddRow("s1", "u1", "t1", startAt, endAt).
			AddRow("s2", "u2", "t1", startAt.Add(time.Hour), nil))

	sessions, err := store.ListSessions(context.Background(), tracking.Filter{StartedAfter: from, StartedBefore: to})
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.False(t, sessions[0].Open())
	assert.True(t, sessions[1].Open())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseSessions(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE task_sessions SET ended_at = $2 WHERE id = $1 AND ended_at IS NULL")).
		WithArgs("s1", endAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE task_sessions SET ended_at = $2 WHERE id = $1 AND ended_at IS NULL")).
		WithArgs("s2", endAt).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := store.CloseSessions(context.Background(), []tracking.Closure{
		{SessionID: "s1", End: endAt},
		{SessionID: "s2", End: endAt},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseSessions_Empty(t *testing.T) {
	store, mock := newMock(t)
	require.NoError(t, store.CloseSessions(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
