package wallet

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore implements Store with PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed wallet store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the wallets table.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS wallets (
			wallet_id   CHAR(64) PRIMARY KEY,
			owner_id    VARCHAR(64) NOT NULL UNIQUE,
			owner_email VARCHAR(255) NOT NULL UNIQUE,
			balance     NUMERIC(20, 2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

func (p *PostgresStore) Create(ctx context.Context, w *Wallet) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO wallets (wallet_id, owner_id, owner_email, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, w.ID, w.OwnerID, w.OwnerEmail, w.Balance, w.CreatedAt, w.UpdatedAt)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return fmt.Errorf("wallet %s already exists", w.ID)
	}
	return err
}

func (p *PostgresStore) GetByID(ctx context.Context, id string) (*Wallet, error) {
	return p.get(ctx, `wallet_id = $1`, id)
}

func (p *PostgresStore) GetByOwner(ctx context.Context, ownerID string) (*Wallet, error) {
	return p.get(ctx, `owner_id = $1`, ownerID)
}

func (p *PostgresStore) GetByEmail(ctx context.Context, email string) (*Wallet, error) {
	return p.get(ctx, `owner_email = $1`, email)
}

func (p *PostgresStore) get(ctx context.Context, where string, arg any) (*Wallet, error) {
	w := &Wallet{}
	err := p.db.QueryRowContext(ctx, `
		SELECT wallet_id, owner_id, owner_email, balance, created_at, updated_at
		FROM wallets WHERE `+where,
		arg,
	).Scan(&w.ID, &w.OwnerID, &w.OwnerEmail, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (p *PostgresStore) Credit(ctx context.Context, id string, amount float64) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE wallets SET balance = balance + $1, updated_at = NOW()
		WHERE wallet_id = $2
	`, amount, id)
	if err != nil {
		return err
	}
	return checkFound(res)
}

func (p *PostgresStore) Debit(ctx context.Context, id string, amount float64) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE wallets SET balance = balance - $1, updated_at = NOW()
		WHERE wallet_id = $2 AND balance >= $1
	`, amount, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Distinguish missing wallet from overdraft.
		w, getErr := p.GetByID(ctx, id)
		if getErr != nil {
			return getErr
		}
		return insufficientErr(w.Balance)
	}
	return nil
}

// Transfer debits sender and credits receiver inside one serializable
// transaction so concurrent transfers never observe a partial move.
func (p *PostgresStore) Transfer(ctx context.Context, senderID, receiverID string, amount float64) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transfer tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var balance float64
	err = tx.QueryRowContext(ctx, `
		SELECT balance FROM wallets WHERE wallet_id = $1 FOR UPDATE
	`, senderID).Scan(&balance)
	if err == sql.ErrNoRows {
		return ErrWalletNotFound
	}
	if err != nil {
		return err
	}
	if balance < amount {
		return insufficientErr(balance)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE wallets SET balance = balance + $1, updated_at = NOW()
		WHERE wallet_id = $2
	`, amount, receiverID)
	if err != nil {
		return err
	}
	if err := checkFound(res); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE wallets SET balance = balance - $1, updated_at = NOW()
		WHERE wallet_id = $2
	`, amount, senderID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func checkFound(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrWalletNotFound
	}
	return nil
}
