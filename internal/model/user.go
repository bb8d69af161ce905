// Package model defines domain entities for the application.
package model

import "time"

// DefaultGroupName is the group every self-registered user is placed in.
// The group row is created lazily on first registration.
const DefaultGroupName = "USER"

// User represents an account identity record.
// A user starts inactive and becomes active when exactly one activation
// token has been consumed for it.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	GroupID      int64     `json:"group_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserGroup is a coarse role/category shared by many users.
type UserGroup struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
