// Package auth handles user accounts, password hashing, JWT issuance, and
// the gin middleware protecting the API.
package auth

import (
	"context"
	"errors"
	"time"
)

// Roles, least to most privileged.
const (
	RoleUser    = "User"
	RoleManager = "Manager"
	RoleAdmin   = "Admin"
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 4

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrPasswordTooShort   = errors.New("password must be at least 4 characters")
	ErrInvalidRole        = errors.New("invalid role")
	ErrSelfDelete         = errors.New("cannot delete your own account")
)

// User is one account. PasswordHash never serializes.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Store persists users.
type Store interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleManager || role == RoleAdmin
}
