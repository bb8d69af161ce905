package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gatehouse/gatehouse/internal/model"
)

// ErrActivationTokenNotFound covers both a token that never existed and one
// that is past its expiry. Callers must not be able to tell the two apart.
var ErrActivationTokenNotFound = errors.New("activation token not found or expired")

// ReplaceActivationToken stores a fresh activation token for a user,
// atomically replacing any prior live token. The unique constraint on
// user_id guarantees at most one row per user.
func (r *Repository) ReplaceActivationToken(ctx context.Context, token *model.ActivationToken) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := replaceActivationToken(ctx, tx, token); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit activation token: %w", err)
	}
	return nil
}

func replaceActivationToken(ctx context.Context, tx pgx.Tx, token *model.ActivationToken) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO activation_tokens (user_id, token, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at
		RETURNING id
	`, token.UserID, token.Token, token.ExpiresAt).Scan(&token.ID)
	if err != nil {
		return fmt.Errorf("failed to store activation token: %w", err)
	}
	return nil
}

// GetActivationToken retrieves an activation token by its value.
func (r *Repository) GetActivationToken(ctx context.Context, token string) (*model.ActivationToken, error) {
	var at model.ActivationToken
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, token, expires_at
		FROM activation_tokens
		WHERE token = $1
	`, token).Scan(&at.ID, &at.UserID, &at.Token, &at.ExpiresAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrActivationTokenNotFound
		}
		return nil, fmt.Errorf("failed to get activation token: %w", err)
	}

	return &at, nil
}

// ConsumeActivationToken activates the owning user and deletes the token in
// a single transaction. Both mutations commit together or neither does.
//
// An unknown token, an expired token, and a token deleted by a concurrent
// consume or sweep all return ErrActivationTokenNotFound. Expired rows are
// left in place for the sweeper.
func (r *Repository) ConsumeActivationToken(ctx context.Context, token string, now time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Row-level lock so a racing sweep or consume waits here and then sees
	// the row gone.
	var userID int64
	var expiresAt time.Time
	err = tx.QueryRow(ctx, `
		SELECT user_id, expires_at
		FROM activation_tokens
		WHERE token = $1
		FOR UPDATE
	`, token).Scan(&userID, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrActivationTokenNotFound
		}
		return fmt.Errorf("failed to look up activation token: %w", err)
	}

	if now.After(expiresAt) {
		return ErrActivationTokenNotFound
	}

	cmd, err := tx.Exec(ctx, `DELETE FROM activation_tokens WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("failed to delete activation token: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		// Lost the race after all; treat the same as not found.
		return ErrActivationTokenNotFound
	}

	if _, err := tx.Exec(ctx, `
		UPDATE users SET is_active = TRUE, updated_at = $2 WHERE id = $1
	`, userID, now); err != nil {
		return fmt.Errorf("failed to activate user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit activation: %w", err)
	}
	return nil
}

// DeleteExpiredActivationTokens removes every token whose expiry is strictly
// in the past. Returns the number of rows removed; zero is not an error.
func (r *Repository) DeleteExpiredActivationTokens(ctx context.Context, now time.Time) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM activation_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	return cmd.RowsAffected(), nil
}
