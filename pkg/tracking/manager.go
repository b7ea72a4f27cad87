package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/txn2/timetrack/pkg/catalog"
)

// Manager exposes the session lifecycle operations. It validates input
// against the task catalog and delegates the transactional work to the
// Store, which is where the one-open-session invariant is enforced; the
// Manager never relies on the client ending a session before starting the
// next one.
type Manager struct {
	store   Store
	catalog catalog.Store
	now     func() time.Time
}

// NewManager creates a session manager over the given store and catalog.
func NewManager(store Store, cat catalog.Store) *Manager {
	return &Manager{
		store:   store,
		catalog: cat,
		now:     time.Now,
	}
}

// WithClock replaces the manager's clock. Tests use this to pin "now".
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Start opens a session for the user against the given task type. Any open
// session is closed server-side at the same instant, inside the same store
// transaction, so exactly one open session exists afterwards.
func (m *Manager) Start(ctx context.Context, userID, taskID string) (*Session, error) {
	task, err := m.catalog.Get(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("resolving task type: %w", err)
	}
	if task == nil {
		return nil, Validationf("unknown task type %q", taskID)
	}

	started, previous, err := m.store.StartSession(ctx, userID, taskID, m.now())
	if err != nil {
		return nil, err
	}
	if previous != nil {
		slog.Info("closed previous session on start",
			"user_id", userID, "session_id", previous.ID, "task_id", previous.TaskID)
	}
	slog.Info("session started", "user_id", userID, "session_id", started.ID, "task_id", taskID)
	return started, nil
}

// End closes the user's open session. Returns ErrNoOpenSession, with no
// mutation, when nothing is open.
func (m *Manager) End(ctx context.Context, userID string) error {
	sess, err := m.store.EndSession(ctx, userID, m.now())
	if err != nil {
		return err
	}
	slog.Info("session ended", "user_id", userID, "session_id", sess.ID)
	return nil
}

// GoOnBreak resolves the break kind to a protected task type and delegates
// to Start.
func (m *Manager) GoOnBreak(ctx context.Context, userID, breakKind string) (*Session, error) {
	task, err := m.catalog.GetByName(ctx, breakKind)
	if err != nil {
		return nil, fmt.Errorf("resolving break type: %w", err)
	}
	if task == nil || !task.IsProtected {
		return nil, Validationf("unknown break type %q", breakKind)
	}
	return m.Start(ctx, userID, task.ID)
}

// Active returns the user's open session, or nil, nil when none.
func (m *Manager) Active(ctx context.Context, userID string) (*Session, error) {
	return m.store.ActiveSession(ctx, userID)
}

// History returns all of the user's sessions ordered by start.
func (m *Manager) History(ctx context.Context, userID string) ([]*Session, error) {
	return m.store.ListSessions(ctx, Filter{UserID: userID})
}

// LoggedToday reports whether the user has any session that started within
// the current UTC day.
func (m *Manager) LoggedToday(ctx context.Context, userID string) (bool, error) {
	dayStart := m.now().UTC().Truncate(24 * time.Hour)
	sessions, err := m.store.ListSessions(ctx, Filter{
		UserID:        userID,
		StartedAfter:  dayStart,
		StartedBefore: dayStart.Add(24 * time.Hour),
	})
	if err != nil {
		return false, err
	}
	return len(sessions) > 0, nil
}
