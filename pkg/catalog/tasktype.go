// Package catalog provides the task type catalog: the categories users
// track time against, including the protected non-working types (Lunch,
// Break, Day Off) and per-user task assignments.
package catalog

import (
	"context"
	"errors"
)

// ErrProtected is returned when an operation would modify or delete a
// protected task type.
var ErrProtected = errors.New("task type is protected")

// TaskType is one category of trackable work.
type TaskType struct {
	// ID is the unique task type identifier.
	ID string `json:"id"`

	// Name is the display name, unique within the catalog.
	Name string `json:"name"`

	// IsProtected marks non-working types (Lunch, Break, Day Off). They are
	// exempt from working-task UX restrictions but still participate in the
	// one-open-session invariant, and cannot be updated or deleted.
	IsProtected bool `json:"isProtected"`
}

// Assignment links a task type to a user allowed to log against it.
type Assignment struct {
	TaskID string `json:"taskId"`
	UserID string `json:"userId"`
}

// Store defines task type persistence.
//
// Lookup methods return nil, nil when nothing matches.
type Store interface {
	// Create persists a new task type.
	Create(ctx context.Context, t *TaskType) error

	// Get retrieves a task type by id.
	Get(ctx context.Context, id string) (*TaskType, error)

	// GetByName retrieves a task type by its display name.
	GetByName(ctx context.Context, name string) (*TaskType, error)

	// List returns all task types ordered by name.
	List(ctx context.Context) ([]*TaskType, error)

	// Update renames a task type. Returns ErrProtected for protected types
	// and nil, nil semantics do not apply: unknown ids yield an error.
	Update(ctx context.Context, id, name string) (*TaskType, error)

	// Delete removes a task type. Returns ErrProtected for protected types.
	Delete(ctx context.Context, id string) error

	// Assign links a task type to a user. Assigning twice is a no-op.
	Assign(ctx context.Context, taskID, userID string) error

	// Unassign removes a task/user link. Reports whether a link existed.
	Unassign(ctx context.Context, taskID, userID string) (bool, error)

	// Assignments returns all task/user links.
	Assignments(ctx context.Context) ([]*Assignment, error)

	// ListForUser returns the task types assigned to a user plus all
	// protected types, which are available to everyone.
	ListForUser(ctx context.Context, userID string) ([]*TaskType, error)
}
