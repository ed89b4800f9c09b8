package auth

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

// PostgresStore implements Store with PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed user store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the users table.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id            VARCHAR(64) PRIMARY KEY,
			email         VARCHAR(255) NOT NULL UNIQUE,
			name          VARCHAR(255) NOT NULL,
			role          VARCHAR(20) NOT NULL,
			password_hash VARCHAR(100) NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

const userColumns = `id, email, name, role, password_hash, created_at`

func (p *PostgresStore) Create(ctx context.Context, u *User) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, role, password_hash, created_at)
		VALUES ($1, LOWER($2), $3, $4, $5, $6)
	`, u.ID, u.Email, u.Name, u.Role, u.PasswordHash, u.CreatedAt)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrEmailTaken
	}
	return err
}

func (p *PostgresStore) GetByID(ctx context.Context, id string) (*User, error) {
	return p.get(ctx, `id = $1`, id)
}

func (p *PostgresStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	return p.get(ctx, `email = LOWER($1)`, email)
}

func (p *PostgresStore) get(ctx context.Context, where string, arg any) (*User, error) {
	u := &User{}
	err := p.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg).
		Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (p *PostgresStore) List(ctx context.Context) ([]*User, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var users []*User
	for rows.Next() {
		u := &User{}
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (p *PostgresStore) Update(ctx context.Context, u *User) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE users SET role = $1, password_hash = $2, name = $3 WHERE id = $4
	`, u.Role, u.PasswordHash, u.Name, u.ID)
	if err != nil {
		return err
	}
	return checkFound(res)
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkFound(res)
}

func (p *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func checkFound(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}
