// Package postgres provides read-only PostgreSQL access to the users table
// maintained by the identity provider.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/txn2/timetrack/pkg/directory"
)

// Store implements directory.Directory using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL user directory.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get retrieves a user by id. Returns nil, nil when unknown.
func (s *Store) Get(ctx context.Context, id string) (*directory.User, error) {
	query := `SELECT id, username, email, role FROM users WHERE id = $1`
	var u directory.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Username, &u.Email, &u.Role)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // Directory interface specifies nil,nil for not-found
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return &u, nil
}

// List returns all users ordered by username.
func (s *Store) List(ctx context.Context) ([]*directory.User, error) {
	query := `SELECT id, username, email, role FROM users ORDER BY username`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*directory.User
	for rows.Next() {
		var u directory.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Role); err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		result = append(result, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user rows: %w", err)
	}
	return result, nil
}

// Verify interface compliance.
var _ directory.Directory = (*Store)(nil)
