// Package pgstore provides PostgreSQL-backed persistence for the engine's
// repository interfaces using pgx connection pools.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	careauth "github.com/clinicore/careauth"
)

const userColumns = `id, email, password_hash, name, role, active, verified, created_at, updated_at`

// UserRepository implements careauth.UserRepository on a pgx pool.
type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*careauth.Subject, error) {
	var u careauth.Subject
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role,
		&u.Active, &u.Verified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, careauth.ErrSubjectNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*careauth.Subject, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*careauth.Subject, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = LOWER($1)`, email)
	return scanUser(row)
}

func (r *UserRepository) Create(ctx context.Context, u *careauth.Subject) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO users (id, email, password_hash, name, role, active, verified, created_at, updated_at)
VALUES ($1, LOWER($2), $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.Active, u.Verified, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) Update(ctx context.Context, u *careauth.Subject) error {
	tag, err := r.db.Exec(ctx, `
UPDATE users
SET email = LOWER($2), password_hash = $3, name = $4, role = $5,
    active = $6, verified = $7, updated_at = $8
WHERE id = $1`,
		u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.Active, u.Verified, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return careauth.ErrSubjectNotFound
	}
	return nil
}
