package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore implements Store using in-memory maps. It backs tests and
// single-process development setups.
type MemoryStore struct {
	mu          sync.RWMutex
	types       map[string]*TaskType
	assignments map[string]map[string]bool // taskID -> userID set
}

// NewMemoryStore creates an empty in-memory catalog.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		types:       make(map[string]*TaskType),
		assignments: make(map[string]map[string]bool),
	}
}

// Create persists a new task type.
func (s *MemoryStore) Create(_ context.Context, t *TaskType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.types {
		if strings.EqualFold(existing.Name, t.Name) {
			return fmt.Errorf("task type %q already exists", t.Name)
		}
	}
	cp := *t
	s.types[t.ID] = &cp
	return nil
}

// Get retrieves a task type by id. Returns nil, nil when unknown.
func (s *MemoryStore) Get(_ context.Context, id string) (*TaskType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.types[id]
	if !ok {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	cp := *t
	return &cp, nil
}

// GetByName retrieves a task type by name. Returns nil, nil when unknown.
func (s *MemoryStore) GetByName(_ context.Context, name string) (*TaskType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.types {
		if strings.EqualFold(t.Name, name) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
}

// List returns all task types ordered by name.
func (s *MemoryStore) List(_ context.Context) ([]*TaskType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*TaskType, 0, len(s.types))
	for _, t := range s.types {
		cp := *t
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Update renames a task type.
func (s *MemoryStore) Update(_ context.Context, id, name string) (*TaskType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.types[id]
	if !ok {
		return nil, fmt.Errorf("task type %q not found", id)
	}
	if t.IsProtected {
		return nil, ErrProtected
	}
	t.Name = name
	cp := *t
	return &cp, nil
}

// Delete removes a task type.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.types[id]
	if !ok {
		return fmt.Errorf("task type %q not found", id)
	}
	if t.IsProtected {
		return ErrProtected
	}
	delete(s.types, id)
	delete(s.assignments, id)
	return nil
}

// Assign links a task type to a user.
func (s *MemoryStore) Assign(_ context.Context, taskID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.types[taskID]; !ok {
		return fmt.Errorf("task type %q not found", taskID)
	}
	if s.assignments[taskID] == nil {
		s.assignments[taskID] = make(map[string]bool)
	}
	s.assignments[taskID][userID] = true
	return nil
}

// Unassign removes a task/user link.
func (s *MemoryStore) Unassign(_ context.Context, taskID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, ok := s.assignments[taskID]
	if !ok || !users[userID] {
		return false, nil
	}
	delete(users, userID)
	return true, nil
}

// Assignments returns all task/user links.
func (s *MemoryStore) Assignments(_ context.Context) ([]*Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Assignment
	for taskID, users := range s.assignments {
		for userID := range users {
			result = append(result, &Assignment{TaskID: taskID, UserID: userID})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].TaskID != result[j].TaskID {
			return result[i].TaskID < result[j].TaskID
		}
		return result[i].UserID < result[j].UserID
	})
	return result, nil
}

// ListForUser returns assigned task types plus all protected types.
func (s *MemoryStore) ListForUser(_ context.Context, userID string) ([]*TaskType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*TaskType
	for id, t := range s.types {
		if t.IsProtected || s.assignments[id][userID] {
			cp := *t
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
