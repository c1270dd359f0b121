package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"honnylove-backend/internal/apperr"
	"honnylove-backend/internal/users"
)

func (t *tx) InsertUser(ctx context.Context, u *users.User) error {
	query := `
		INSERT INTO users (email, name, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := t.tx.QueryRowContext(ctx, query, u.Email, u.Name, u.PasswordHash, u.Role).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		err = translate(err, "user")
		if apperr.Is(err, apperr.CodeConflict) {
			return apperr.New(apperr.CodeConflict, "email already registered")
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (t *tx) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	query := `
		SELECT id, email, name, password_hash, role, created_at
		FROM users
		WHERE lower(email) = lower($1)
	`
	return scanUser(t.tx.QueryRowContext(ctx, query, email))
}

func (t *tx) GetUser(ctx context.Context, id int64) (*users.User, error) {
	query := `
		SELECT id, email, name, password_hash, role, created_at
		FROM users
		WHERE id = $1
	`
	return scanUser(t.tx.QueryRowContext(ctx, query, id))
}

func scanUser(row scanner) (*users.User, error) {
	var u users.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user")
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}
