package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kybervision-api/internal/metrics"
)

// GetUser returns the user with the given id, or ErrNotFound.
func (d *Database) GetUser(ctx context.Context, id int64) (*User, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	start := time.Now()
	row := d.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, is_admin FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	metrics.ObserveDBQuery("get_user", start, err)
	return u, err
}

// GetUserByEmail returns the user with the given email, or ErrNotFound.
func (d *Database) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	start := time.Now()
	row := d.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, is_admin FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	metrics.ObserveDBQuery("get_user_by_email", start, err)
	return u, err
}

// CreateUser inserts a user with an already-hashed password.
func (d *Database) CreateUser(ctx context.Context, username, email, passwordHash string, isAdmin bool) (int64, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := d.db.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, is_admin)
		VALUES (?, ?, ?, ?)`, username, email, passwordHash, isAdmin)
	metrics.ObserveDBQuery("create_user", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return res.LastInsertId()
}

// UpdateUserPassword replaces a user's password hash. Used by the
// resetpw CLI only.
func (d *Database) UpdateUserPassword(ctx context.Context, email, passwordHash string) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	res, err := d.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE email = ?`, passwordHash, email)
	if err != nil {
		return fmt.Errorf("failed to update password for %s: %w", email, err)
	}
	return requireRow(res)
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user row: %w", err)
	}
	return &u, nil
}
