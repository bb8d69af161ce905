package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gatehouse/gatehouse/internal/model"
)

// ErrRefreshTokenNotFound indicates the refresh token row does not exist.
var ErrRefreshTokenNotFound = errors.New("refresh token not found")

// CreateRefreshToken persists a refresh token issued at login.
// A user may hold any number of concurrent refresh tokens (multi-session).
func (r *Repository) CreateRefreshToken(ctx context.Context, token *model.RefreshToken) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO refresh_tokens (token, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, token.Token, token.UserID, token.CreatedAt, token.ExpiresAt).Scan(&token.ID)
	if err != nil {
		return fmt.Errorf("failed to create refresh token: %w", err)
	}
	return nil
}

// GetRefreshToken retrieves a refresh token row by its value.
func (r *Repository) GetRefreshToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	var rt model.RefreshToken
	err := r.pool.QueryRow(ctx, `
		SELECT id, token, user_id, created_at, expires_at
		FROM refresh_tokens
		WHERE token = $1
	`, token).Scan(&rt.ID, &rt.Token, &rt.UserID, &rt.CreatedAt, &rt.ExpiresAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	return &rt, nil
}

// DeleteRefreshToken removes the refresh token row matching the given value,
// revoking that session. Returns whether a row was actually removed; a miss
// is not an error so logout stays idempotent.
func (r *Repository) DeleteRefreshToken(ctx context.Context, token string) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	if err != nil {
		return false, fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return cmd.RowsAffected() > 0, nil
}
