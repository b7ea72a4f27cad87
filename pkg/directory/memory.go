package directory

import (
	"context"
	"sort"
	"sync"
)

// MemoryDirectory implements Directory over a fixed in-memory user set.
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewMemoryDirectory creates a directory holding the given users.
func NewMemoryDirectory(users ...*User) *MemoryDirectory {
	d := &MemoryDirectory{users: make(map[string]*User)}
	for _, u := range users {
		cp := *u
		d.users[u.ID] = &cp
	}
	return d
}

// Add inserts or replaces a user.
func (d *MemoryDirectory) Add(u *User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *u
	d.users[u.ID] = &cp
}

// Get retrieves a user by id. Returns nil, nil when unknown.
func (d *MemoryDirectory) Get(_ context.Context, id string) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[id]
	if !ok {
		return nil, nil //nolint:nilnil // Directory interface specifies nil,nil for not-found
	}
	cp := *u
	return &cp, nil
}

// List returns all users ordered by username.
func (d *MemoryDirectory) List(_ context.Context) ([]*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]*User, 0, len(d.users))
	for _, u := range d.users {
		cp := *u
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

// Verify interface compliance.
var _ Directory = (*MemoryDirectory)(nil)
