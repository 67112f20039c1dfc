package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/oprema/internal/db"
	"github.com/erazemk/oprema/internal/model"
)

const userColumns = `id, email, full_name, department, password_hash, role, created_at, updated_at, deleted_at`

func scanUser(s scanner) (*model.User, error) {
	u := &model.User{}
	var department sql.NullString
	var deletedAt sql.NullTime
	err := s.Scan(&u.ID, &u.Email, &u.FullName, &department, &u.PasswordHash, &u.Role,
		&u.CreatedAt, &u.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	u.Department = department.String
	if deletedAt.Valid {
		u.DeletedAt = &deletedAt.Time
	}
	return u, nil
}

// CreateUser creates a new user. The email is expected to be normalized.
func CreateUser(ctx context.Context, q db.Querier, email, fullName, department, passwordHash, role string) (*model.User, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`INSERT INTO users (email, full_name, department, password_hash, role)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`,
		email, fullName, nullString(department), passwordHash, role,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return GetUser(ctx, q, id)
}

// GetUser returns a user by ID (including soft-deleted), or nil.
func GetUser(ctx context.Context, q db.Querier, id int64) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns the active user with the given email, or nil.
func GetUserByEmail(ctx context.Context, q db.Querier, email string) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? AND deleted_at IS NULL`, email,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

// ListUsers returns all non-deleted users, optionally filtered by role.
func ListUsers(ctx context.Context, q db.Querier, role string) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL`
	var args []any
	if role != "" {
		query += ` AND role = ?`
		args = append(args, role)
	}
	query += ` ORDER BY full_name, id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateUser updates a user's profile and role.
func UpdateUser(ctx context.Context, q db.Querier, id int64, fullName, department, role string) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE users SET full_name = ?, department = ?, role = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		fullName, nullString(department), role, id,
	)
	if err != nil {
		return false, fmt.Errorf("updating user: %w", err)
	}
	return affected(result)
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, q db.Querier, id int64, passwordHash string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return nil
}

// DeleteUser soft-deletes a user. Their assignments and requests remain.
func DeleteUser(ctx context.Context, q db.Querier, id int64) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE users SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("deleting user: %w", err)
	}
	return affected(result)
}
