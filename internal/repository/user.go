package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gatehouse/gatehouse/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already exists")
)

// CreateUser inserts a new, inactive user together with its activation token
// in a single transaction. The default group is created lazily if absent.
// The user's ID, timestamps and group ID are filled in on success.
//
// A concurrent registration with the same email surfaces as ErrEmailExists;
// the activation-token insert replaces any prior token for the user, so a
// user can never end up with two live tokens.
func (r *Repository) CreateUser(ctx context.Context, user *model.User, token *model.ActivationToken) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	groupID, err := getOrCreateGroup(ctx, tx, model.DefaultGroupName)
	if err != nil {
		return err
	}
	user.GroupID = groupID

	now := time.Now().UTC()
	err = tx.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, is_active, group_id, created_at, updated_at)
		VALUES ($1, $2, FALSE, $3, $4, $4)
		RETURNING id, is_active, created_at, updated_at
	`, user.Email, user.PasswordHash, groupID, now).Scan(
		&user.ID,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	token.UserID = user.ID
	if err := replaceActivationToken(ctx, tx, token); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit user creation: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by their email address (case-sensitive,
// exact match as stored).
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.scanUser(ctx, `
		SELECT id, email, password_hash, is_active, group_id, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email)
}

// GetUserByID retrieves a user by their ID.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return r.scanUser(ctx, `
		SELECT id, email, password_hash, is_active, group_id, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
}

func (r *Repository) scanUser(ctx context.Context, query string, arg any) (*model.User, error) {
	var user model.User
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.IsActive,
		&user.GroupID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// DeleteUser removes a user and everything it owns in one transaction.
// Token rows are removed explicitly rather than via ON DELETE CASCADE so the
// ownership chain is visible in code.
func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, id); err != nil {
		return fmt.Errorf("delete refresh tokens: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM activation_tokens WHERE user_id = $1`, id); err != nil {
		return fmt.Errorf("delete activation token: %w", err)
	}

	cmd, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit user deletion: %w", err)
	}
	return nil
}
