package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// FindByID loads a user profile. Column names follow the camelCase layout of
// the account service that owns the users table.
func (s *Store) FindByID(ctx context.Context, id string) (*User, error) {
	const q = `SELECT id::text, username, "firstName", "lastName" FROM users WHERE id::text = $1`
	var u User
	err := s.Pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &u, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
