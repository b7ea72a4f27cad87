// Package postgres provides PostgreSQL storage for the task type catalog.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/txn2/timetrack/pkg/catalog"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// taskColumns lists columns returned by task type SELECT queries.
var taskColumns = []string{"id", "name", "is_protected"}

// Store implements catalog.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL catalog store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create persists a new task type.
func (s *Store) Create(ctx context.Context, t *catalog.TaskType) error {
	query := `INSERT INTO task_types (id, name, is_protected) VALUES ($1, $2, $3)`
	_, err := s.db.ExecContext(ctx, query, t.ID, t.Name, t.IsProtected)
	if err != nil {
		return fmt.Errorf("inserting task type: %w", err)
	}
	return nil
}

// Get retrieves a task type by id. Returns nil, nil when unknown.
func (s *Store) Get(ctx context.Context, id string) (*catalog.TaskType, error) {
	query, args, err := psq.Select(taskColumns...).From("task_types").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building task type query: %w", err)
	}
	return scanTaskType(s.db.QueryRowContext(ctx, query, args...))
}

// GetByName retrieves a task type by name. Returns nil, nil when unknown.
func (s *Store) GetByName(ctx context.Context, name string) (*catalog.TaskType, error) {
	query, args, err := psq.Select(taskColumns...).From("task_types").
		Where("lower(name) = lower(?)", name).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building task type query: %w", err)
	}
	return scanTaskType(s.db.QueryRowContext(ctx, query, args...))
}

// List returns all task types ordered by name.
func (s *Store) List(ctx context.Context) ([]*catalog.TaskType, error) {
	query, args, err := psq.Select(taskColumns...).From("task_types").OrderBy("name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building task type list query: %w", err)
	}
	return s.queryTaskTypes(ctx, query, args...)
}

// Update renames a task type. Protected types are never modified.
func (s *Store) Update(ctx context.Context, id, name string) (*catalog.TaskType, error) {
	query := `
		UPDATE task_types SET name = $2
		WHERE id = $1 AND is_protected = FALSE
		RETURNING id, name, is_protected
	`
	t, err := scanTaskType(s.db.QueryRowContext(ctx, query, id, name))
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, s.protectedOrMissing(ctx, id)
	}
	return t, nil
}

// Delete removes a task type. Protected types are never deleted.
func (s *Store) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM task_types WHERE id = $1 AND is_protected = FALSE`
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting task type: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting task type: %w", err)
	}
	if n == 0 {
		return s.protectedOrMissing(ctx, id)
	}
	return nil
}

// Assign links a task type to a user. Assigning twice is a no-op.
func (s *Store) Assign(ctx context.Context, taskID, userID string) error {
	query := `
		INSERT INTO task_assignments (task_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (task_id, user_id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query, taskID, userID)
	if err != nil {
		return fmt.Errorf("inserting task assignment: %w", err)
	}
	return nil
}

// Unassign removes a task/user link.
func (s *Store) Unassign(ctx context.Context, taskID, userID string) (bool, error) {
	query := `DELETE FROM task_assignments WHERE task_id = $1 AND user_id = $2`
	res, err := s.db.ExecContext(ctx, query, taskID, userID)
	if err != nil {
		return false, fmt.Errorf("deleting task assignment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting task assignment: %w", err)
	}
	return n > 0, nil
}

// Assignments returns all task/user links.
func (s *Store) Assignments(ctx context.Context) ([]*catalog.Assignment, error) {
	query := `SELECT task_id, user_id FROM task_assignments ORDER BY task_id, user_id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing task assignments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*catalog.Assignment
	for rows.Next() {
		var a catalog.Assignment
		if err := rows.Scan(&a.TaskID, &a.UserID); err != nil {
			return nil, fmt.Errorf("scanning task assignment: %w", err)
		}
		result = append(result, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task assignments: %w", err)
	}
	return result, nil
}

// ListForUser returns assigned task types plus all protected types.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]*catalog.TaskType, error) {
	query := `
		SELECT t.id, t.name, t.is_protected
		FROM task_types t
		LEFT JOIN task_assignments a ON a.task_id = t.id AND a.user_id = $1
		WHERE t.is_protected = TRUE OR a.user_id IS NOT NULL
		ORDER BY t.name
	`
	return s.queryTaskTypes(ctx, query, userID)
}

// protectedOrMissing distinguishes a guarded update/delete miss.
func (s *Store) protectedOrMissing(ctx context.Context, id string) error {
	t, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("task type %q not found", id)
	}
	return catalog.ErrProtected
}

func (s *Store) queryTaskTypes(ctx context.Context, query string, args ...any) ([]*catalog.TaskType, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing task types: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*catalog.TaskType
	for rows.Next() {
		var t catalog.TaskType
		if err := rows.Scan(&t.ID, &t.Name, &t.IsProtected); err != nil {
			return nil, fmt.Errorf("scanning task type: %w", err)
		}
		result = append(result, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task types: %w", err)
	}
	return result, nil
}

func scanTaskType(row *sql.Row) (*catalog.TaskType, error) {
	var t catalog.TaskType
	err := row.Scan(&t.ID, &t.Name, &t.IsProtected)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	if err != nil {
		return nil, fmt.Errorf("scanning task type: %w", err)
	}
	return &t, nil
}

// Verify interface compliance.
var _ catalog.Store = (*Store)(nil)
