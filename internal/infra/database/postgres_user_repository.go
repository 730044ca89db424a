package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"helpdesk_bot/internal/domain/user"
)

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// Create inserts the user, refreshing profile fields on conflict so repeat
// visitors keep their current username and full name.
func (r *PostgresUserRepository) Create(ctx context.Context, u *user.User) error {
	query := `INSERT INTO users (source, external_id, username, full_name, department, role)
              VALUES ($1, $2, $3, $4, $5, $6)
              ON CONFLICT (source, external_id) DO UPDATE
                  SET username = EXCLUDED.username, full_name = EXCLUDED.full_name
              RETURNING id, role, created_at`
	err := r.db.QueryRowContext(ctx, query,
		u.Source, u.ExternalID, u.Username, u.FullName, u.Department, u.Role,
	).Scan(&u.ID, &u.Role, &u.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	query := `SELECT id, source, external_id, username, full_name, department, role, created_at
              FROM users WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id), "error getting user by ID")
}

func (r *PostgresUserRepository) GetByExternalID(ctx context.Context, source string, externalID int64) (*user.User, error) {
	query := `SELECT id, source, external_id, username, full_name, department, role, created_at
              FROM users WHERE source = $1 AND external_id = $2`
	return r.scanOne(r.db.QueryRowContext(ctx, query, source, externalID), "error getting user by external ID")
}

func (r *PostgresUserRepository) scanOne(row *sql.Row, errContext string) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(&u.ID, &u.Source, &u.ExternalID, &u.Username, &u.FullName, &u.Department, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", errContext, err)
	}
	return u, nil
}
