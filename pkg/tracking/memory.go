package tracking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store using an in-memory map. A single mutex
// serializes every operation, standing in for the transaction isolation a
// durable store provides. It backs tests and development setups.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

// StartSession atomically closes the user's open session and inserts a new
// open one.
func (s *MemoryStore) StartSession(_ context.Context, userID, taskID string, now time.Time) (*Session, *Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now = now.UTC()

	var previous *Session
	if open := s.openSessionLocked(userID); open != nil {
		closed, err := open.Interval.Close(now)
		if err != nil {
			return nil, nil, err
		}
		open.Interval = closed
		cp := *open
		previous = &cp
	}

	started := &Session{
		ID:       uuid.NewString(),
		UserID:   userID,
		TaskID:   taskID,
		Interval: OpenSince(now),
	}
	s.sessions[started.ID] = started

	cp := *started
	return &cp, previous, nil
}

// EndSession closes the user's open session at the given instant.
func (s *MemoryStore) EndSession(_ context.Context, userID string, now time.Time) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	open := s.openSessionLocked(userID)
	if open == nil {
		return nil, ErrNoOpenSession
	}
	closed, err := open.Interval.Close(now.UTC())
	if err != nil {
		return nil, err
	}
	open.Interval = closed
	cp := *open
	return &cp, nil
}

// ActiveSession returns the user's open session, or nil, nil when none.
func (s *MemoryStore) ActiveSession(_ context.Context, userID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	open := s.openSessionLocked(userID)
	if open == nil {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	cp := *open
	return &cp, nil
}

// ListSessions returns sessions matching the filter, ordered by start.
func (s *MemoryStore) ListSessions(_ context.Context, filter Filter) ([]*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*Session
	for _, sess := range s.sessions {
		if filter.Matches(sess) {
			cp := *sess
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Interval.Start().Before(result[j].Interval.Start())
	})
	return result, nil
}

// CloseSessions applies the closures; rows already closed are left alone.
func (s *MemoryStore) CloseSessions(_ context.Context, closures []Closure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range closures {
		sess, ok := s.sessions[c.SessionID]
		if !ok || !sess.Open() {
			continue
		}
		closed, err := sess.Interval.Close(c.End.UTC())
		if err != nil {
			return err
		}
		sess.Interval = closed
	}
	return nil
}

// Close releases store resources.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) openSessionLocked(userID string) *Session {
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.Open() {
			return sess
		}
	}
	return nil
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
