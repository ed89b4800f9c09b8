package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/securechain/securechain/internal/idgen"
	"github.com/securechain/securechain/internal/validation"
)

// Claims is the JWT payload issued at login and registration.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Manager implements account operations and token handling.
type Manager struct {
	store  Store
	secret []byte
	expiry time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates an auth manager.
func NewManager(store Store, secret string, expiry time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		secret: []byte(secret),
		expiry: expiry,
		logger: logger,
		now:    time.Now,
	}
}

// Register creates an account with the User role and returns it with a
// signed token.
func (m *Manager) Register(ctx context.Context, email, name, password string) (*User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !validation.IsValidEmail(email) {
		return nil, "", fmt.Errorf("invalid email %q", email)
	}
	if len(password) < MinPasswordLength {
		return nil, "", ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		ID:           idgen.New(),
		Email:        email,
		Name:         validation.SanitizeIdentity(name),
		Role:         RoleUser,
		PasswordHash: string(hash),
		CreatedAt:    m.now().UTC(),
	}
	if err := m.store.Create(ctx, u); err != nil {
		return nil, "", err
	}

	token, err := m.IssueToken(u)
	if err != nil {
		return nil, "", err
	}
	m.logger.Info("user registered", "user_id", u.ID, "email", u.Email)
	return u, token, nil
}

// Login verifies credentials and returns the user with a signed token. It
// reports the same error for unknown emails and wrong passwords.
func (m *Manager) Login(ctx context.Context, email, password string) (*User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := m.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := m.IssueToken(u)
	if err != nil {
		return nil, "", err
	}
	m.logger.Info("user logged in", "user_id", u.ID)
	return u, token, nil
}

// IssueToken signs an HS256 JWT for the user.
func (m *Manager) IssueToken(u *User) (string, error) {
	now := m.now()
	claims := &Claims{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
			Subject:   u.ID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a JWT and returns its claims.
func (m *Manager) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	// The parser checks exp against the wall clock; recheck against the
	// manager's clock.
	if claims.ExpiresAt != nil && m.now().After(claims.ExpiresAt.Time) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GetUser returns a user by ID.
func (m *Manager) GetUser(ctx context.Context, id string) (*User, error) {
	return m.store.GetByID(ctx, id)
}

// ListUsers returns all users (admin operation).
func (m *Manager) ListUsers(ctx context.Context) ([]*User, error) {
	return m.store.List(ctx)
}

// UpdateUser changes a user's role and/or password (admin operation). Empty
// fields are left unchanged.
func (m *Manager) UpdateUser(ctx context.Context, id, role, password string) (*User, error) {
	u, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if role != "" {
		if !ValidRole(role) {
			return nil, ErrInvalidRole
		}
		u.Role = role
	}
	if password != "" {
		if len(password) < MinPasswordLength {
			return nil, ErrPasswordTooShort
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = string(hash)
	}

	if err := m.store.Update(ctx, u); err != nil {
		return nil, err
	}
	m.logger.Info("user updated", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// DeleteUser removes an account (admin operation). Admins cannot delete
// themselves.
func (m *Manager) DeleteUser(ctx context.Context, callerID, id string) error {
	if callerID == id {
		return ErrSelfDelete
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.logger.Info("user deleted", "user_id", id)
	return nil
}

// SeedAdmin creates the bootstrap admin account when no users exist yet.
func (m *Manager) SeedAdmin(ctx context.Context, email, password string) error {
	n, err := m.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u := &User{
		ID:           idgen.New(),
		Email:        strings.ToLower(email),
		Name:         "Administrator",
		Role:         RoleAdmin,
		PasswordHash: string(hash),
		CreatedAt:    m.now().UTC(),
	}
	if err := m.store.Create(ctx, u); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	m.logger.Info("seeded admin account", "email", u.Email)
	return nil
}
