package model

import "time"

// ActivationToken is a single-use credential proving control of a registered
// email address. At most one live token exists per user; the store enforces
// this with a unique constraint on user_id.
type ActivationToken struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the token's expiry is strictly in the past at now.
func (t *ActivationToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// RefreshToken is a long-lived session credential. The stored row is the
// source of truth for validity: deleting it revokes that session regardless
// of the nominal expiry.
type RefreshToken struct {
	ID        int64     `json:"id"`
	Token     string    `json:"-"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the refresh token's nominal expiry has passed.
func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
