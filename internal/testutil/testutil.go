package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/gatehouse/gatehouse/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 730731

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetAuthSchema drops and recreates every auth table for tests.
// Migrations are applied down in reverse order, then up in order, so the
// foreign-key chain (groups <- users <- tokens) stays valid throughout.
func ResetAuthSchema(ctx context.Context, pool *pgxpool.Pool) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	names := []string{
		"000001_user_groups",
		"000002_users",
		"000003_activation_tokens",
		"000004_refresh_tokens",
	}

	for i := len(names) - 1; i >= 0; i-- {
		if err := applyMigration(ctx, pool, root, names[i]+".down.sql"); err != nil {
			return err
		}
	}
	for _, name := range names {
		if err := applyMigration(ctx, pool, root, name+".up.sql"); err != nil {
			return err
		}
	}

	return nil
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, root, filename string) error {
	path := filepath.Join(root, "migrations", filename)

	sql, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", filename, err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("apply migration %s: %w", filename, err)
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestUser creates a user entity with sensible defaults.
// The password hash is an opaque placeholder; use auth.HashPassword when a
// test needs a verifiable credential.
func NewTestUser(t testing.TB, email string) *model.User {
	t.Helper()
	now := time.Now().UTC()
	return &model.User{
		Email:        email,
		PasswordHash: fmt.Sprintf("hash-%d", now.UnixNano()),
		IsActive:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewTestActivationToken creates an activation token expiring in 24 hours.
func NewTestActivationToken(t testing.TB, userID int64) *model.ActivationToken {
	t.Helper()
	return &model.ActivationToken{
		UserID:    userID,
		Token:     UniqueToken("activation"),
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
	}
}

// NewTestRefreshToken creates a refresh token expiring in 7 days.
func NewTestRefreshToken(t testing.TB, userID int64) *model.RefreshToken {
	t.Helper()
	now := time.Now().UTC()
	return &model.RefreshToken{
		Token:     UniqueToken("refresh"),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(7 * 24 * time.Hour),
	}
}

// UniqueEmail generates a unique email address for tests.
func UniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@example.com", prefix, time.Now().UnixNano())
}

// UniqueToken generates a unique token value for tests.
func UniqueToken(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
