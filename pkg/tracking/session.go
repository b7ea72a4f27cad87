// Package tracking provides the session lifecycle core: the Session type,
// the Store interface for session persistence, and the Manager that exposes
// start/end/break operations while preserving the one-open-session-per-user
// invariant.
package tracking

import (
	"context"
	"fmt"
	"time"
)

// Interval is the open/closed state of a session, tagged explicitly rather
// than flagged through a nullable end instant. An Interval is either open
// (start only) or closed (start and end, with end >= start).
type Interval struct {
	start  time.Time
	end    time.Time
	closed bool
}

// OpenSince returns an open interval starting at the given instant.
func OpenSince(start time.Time) Interval {
	return Interval{start: start.UTC()}
}

// ClosedSpan returns a closed interval. It rejects end < start.
func ClosedSpan(start, end time.Time) (Interval, error) {
	start, end = start.UTC(), end.UTC()
	if end.Before(start) {
		return Interval{}, fmt.Errorf("interval end %s before start %s", end, start)
	}
	return Interval{start: start, end: end, closed: true}, nil
}

// Start returns the interval's start instant (UTC).
func (iv Interval) Start() time.Time {
	return iv.start
}

// Closed reports whether the interval has an end instant.
func (iv Interval) Closed() bool {
	return iv.closed
}

// End returns the end instant and true for a closed interval.
func (iv Interval) End() (time.Time, bool) {
	if !iv.closed {
		return time.Time{}, false
	}
	return iv.end, true
}

// Close returns a closed copy of the interval ending at the given instant.
// Closing an already-closed interval is an error.
func (iv Interval) Close(at time.Time) (Interval, error) {
	if iv.closed {
		return Interval{}, fmt.Errorf("interval already closed at %s", iv.end)
	}
	return ClosedSpan(iv.start, at)
}

// Elapsed returns the interval's duration. Open intervals are measured
// against the provided now; the result is provisional and never persisted.
func (iv Interval) Elapsed(now time.Time) time.Duration {
	end := now.UTC()
	if iv.closed {
		end = iv.end
	}
	if end.Before(iv.start) {
		return 0
	}
	return end.Sub(iv.start)
}

// Session is one contiguous time interval a user spent on one task type.
type Session struct {
	// ID is the unique session identifier.
	ID string

	// UserID identifies the session owner. Users are owned by the external
	// identity provider and referenced by id only.
	UserID string

	// TaskID references the task type the time is tracked against.
	TaskID string

	// Interval carries the start instant and the open/closed state.
	Interval Interval
}

// Open reports whether the session has no end instant yet.
func (s *Session) Open() bool {
	return !s.Interval.Closed()
}

// Closure closes one session at a specific instant. The Reconciler emits
// closures and the Store applies them; a closure is a no-op when the row
// was already closed by a concurrent operation.
type Closure struct {
	SessionID string
	End       time.Time
}

// Store defines transactional session persistence.
//
// StartSession and EndSession each execute as a single transaction. The
// store is also the second line of defense for the one-open-session
// invariant: implementations back it with a uniqueness constraint over
// open rows per user.
type Store interface {
	// StartSession atomically closes the user's open session (if any) at
	// the given instant and inserts a new open session. It returns the new
	// session and the previous one that was closed, or nil when none was.
	StartSession(ctx context.Context, userID, taskID string, now time.Time) (started, previous *Session, err error)

	// EndSession closes the user's open session at the given instant and
	// returns it. Returns ErrNoOpenSession, with no mutation, when the user
	// has nothing open.
	EndSession(ctx context.Context, userID string, now time.Time) (*Session, error)

	// ActiveSession returns the user's open session, or nil, nil when none.
	ActiveSession(ctx context.Context, userID string) (*Session, error)

	// ListSessions returns sessions matching the filter, ordered by start.
	ListSessions(ctx context.Context, filter Filter) ([]*Session, error)

	// CloseSessions applies the closures in one transaction. Only rows that
	// are still open are touched, so re-applying a closure writes nothing.
	CloseSessions(ctx context.Context, closures []Closure) error

	// Close releases store resources.
	Close() error
}

// Filter narrows ListSessions. Zero values mean "no constraint".
type Filter struct {
	UserID        string
	TaskID        string
	OnlyOpen      bool
	StartedAfter  time.Time // inclusive
	StartedBefore time.Time // exclusive
}

// Matches reports whether a session satisfies the filter.
func (f Filter) Matches(s *Session) bool {
	if f.UserID != "" && s.UserID != f.UserID {
		return false
	}
	if f.TaskID != "" && s.TaskID != f.TaskID {
		return false
	}
	if f.OnlyOpen && !s.Open() {
		return false
	}
	start := s.Interval.Start()
	if !f.StartedAfter.IsZero() && start.Before(f.StartedAfter) {
		return false
	}
	if !f.StartedBefore.IsZero() && !start.Before(f.StartedBefore) {
		return false
	}
	return true
}
