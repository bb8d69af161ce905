package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gatehouse/gatehouse/internal/model"
)

// ErrGroupNotFound indicates the requested user group does not exist.
var ErrGroupNotFound = errors.New("user group not found")

// GetGroupByName retrieves a user group by its unique name.
func (r *Repository) GetGroupByName(ctx context.Context, name string) (*model.UserGroup, error) {
	var group model.UserGroup
	err := r.pool.QueryRow(ctx, `
		SELECT id, name
		FROM user_groups
		WHERE name = $1
	`, name).Scan(&group.ID, &group.Name)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group by name: %w", err)
	}

	return &group, nil
}

// getOrCreateGroup resolves a group name to its ID inside a transaction,
// inserting the row if it does not exist yet. ON CONFLICT DO NOTHING plus a
// follow-up select makes concurrent first-time registrations converge on a
// single row instead of racing to a duplicate-key failure.
func getOrCreateGroup(ctx context.Context, tx pgx.Tx, name string) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO user_groups (name)
		VALUES ($1)
		ON CONFLICT (name) DO NOTHING
		RETURNING id
	`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to create group: %w", err)
	}

	// Row already existed; DO NOTHING returns nothing, so look it up.
	err = tx.QueryRow(ctx, `SELECT id FROM user_groups WHERE name = $1`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to get group: %w", err)
	}
	return id, nil
}
