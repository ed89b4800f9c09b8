package transactions

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/securechain/securechain/internal/pagination"
)

// PostgresStore implements Store with PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed transaction store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the transactions table.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			transaction_id  VARCHAR(100) PRIMARY KEY,
			sender          VARCHAR(255) NOT NULL,
			receiver        VARCHAR(255) NOT NULL,
			amount          NUMERIC(20, 2) NOT NULL,
			fraud_score     DOUBLE PRECISION NOT NULL,
			status          VARCHAR(20) NOT NULL,
			transfer_status VARCHAR(20) NOT NULL,
			kind            VARCHAR(20) NOT NULL,
			payment_method  VARCHAR(30),
			payment_id      VARCHAR(40),
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_transactions_sender ON transactions(LOWER(sender));
		CREATE INDEX IF NOT EXISTS idx_transactions_receiver ON transactions(LOWER(receiver));
		CREATE INDEX IF NOT EXISTS idx_transactions_created ON transactions(created_at DESC);
	`)
	return err
}

const recordColumns = `transaction_id, sender, receiver, amount, fraud_score,
	status, transfer_status, kind, COALESCE(payment_method, ''), COALESCE(payment_id, ''), created_at`

func (p *PostgresStore) Insert(ctx context.Context, rec *Record) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO transactions (transaction_id, sender, receiver, amount, fraud_score,
			status, transfer_status, kind, payment_method, payment_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11)
	`, rec.ID, rec.Sender, rec.Receiver, rec.Amount, rec.FraudScore,
		rec.Status, rec.TransferStatus, rec.Kind, rec.PaymentMethod, rec.PaymentID, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (p *PostgresStore) Update(ctx context.Context, rec *Record) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE transactions SET sender = $2, receiver = $3, amount = $4, fraud_score = $5,
			status = $6, transfer_status = $7, kind = $8,
			payment_method = NULLIF($9, ''), payment_id = NULLIF($10, ''), created_at = $11
		WHERE LOWER(transaction_id) = LOWER($1)
	`, rec.ID, rec.Sender, rec.Receiver, rec.Amount, rec.FraudScore,
		rec.Status, rec.TransferStatus, rec.Kind, rec.PaymentMethod, rec.PaymentID, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) GetByID(ctx context.Context, id string) (*Record, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM transactions WHERE LOWER(transaction_id) = LOWER($1)
	`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return rec, err
}

func (p *PostgresStore) List(ctx context.Context, f Filter) ([]*Record, int, error) {
	where := `WHERE 1=1`
	args := []any{}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(` AND LOWER(status) = LOWER($%d)`, len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		where += fmt.Sprintf(` AND (sender ILIKE $%d OR receiver ILIKE $%d OR transaction_id ILIKE $%d)`, n, n, n)
	}

	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + recordColumns + ` FROM transactions ` + where + ` ORDER BY created_at DESC`
	if f.Page > 0 && f.PerPage > 0 {
		args = append(args, f.PerPage, pagination.Offset(f.Page, f.PerPage))
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	recs, err := scanRecords(rows)
	return recs, total, err
}

func (p *PostgresStore) ListAll(ctx context.Context) ([]*Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM transactions ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanRecords(rows)
}

func (p *PostgresStore) ListByIdentity(ctx context.Context, identity string, limit int) ([]*Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM transactions
		WHERE LOWER(sender) = LOWER($1) OR LOWER(receiver) = LOWER($1)
		ORDER BY created_at DESC LIMIT $2
	`, identity, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanRecords(rows)
}

func (p *PostgresStore) CountBySender(ctx context.Context, identity string) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions WHERE LOWER(sender) = LOWER($1)
	`, identity).Scan(&n)
	return n, err
}

func (p *PostgresStore) CountByReceiver(ctx context.Context, identity string) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions WHERE LOWER(receiver) = LOWER($1)
	`, identity).Scan(&n)
	return n, err
}

func (p *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n)
	return n, err
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*Record, error) {
	rec := &Record{}
	err := row.Scan(&rec.ID, &rec.Sender, &rec.Receiver, &rec.Amount, &rec.FraudScore,
		&rec.Status, &rec.TransferStatus, &rec.Kind, &rec.PaymentMethod, &rec.PaymentID, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func scanRecords(rows *sql.Rows) ([]*Record, error) {
	var recs []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
