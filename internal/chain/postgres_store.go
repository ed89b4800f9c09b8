package chain

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore implements Store with PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed block store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the blockchain table.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS blockchain (
			block_index     INTEGER PRIMARY KEY,
			transaction_id  VARCHAR(100) NOT NULL,
			previous_hash   CHAR(64) NOT NULL,
			current_hash    CHAR(64) NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_blockchain_tx ON blockchain(transaction_id);
	`)
	return err
}

func (p *PostgresStore) Append(ctx context.Context, block *Block) error {
	// block_index PRIMARY KEY rejects a duplicate index, so a racing append
	// (which the service-level mutex already prevents) fails loudly instead
	// of forking the chain.
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO blockchain (block_index, transaction_id, previous_hash, current_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, block.Index, block.TransactionID, block.PreviousHash, block.CurrentHash, block.Timestamp)
	if err != nil {
		return fmt.Errorf("insert block: %w", err)
	}
	return nil
}

func (p *PostgresStore) Tail(ctx context.Context) (*Block, error) {
	b := &Block{}
	err := p.db.QueryRowContext(ctx, `
		SELECT block_index, transaction_id, previous_hash, current_hash, created_at
		FROM blockchain ORDER BY block_index DESC LIMIT 1
	`).Scan(&b.Index, &b.TransactionID, &b.PreviousHash, &b.CurrentHash, &b.Timestamp)
	if err == sql.ErrNoRows {
		return nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (p *PostgresStore) List(ctx context.Context) ([]*Block, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT block_index, transaction_id, previous_hash, current_hash, created_at
		FROM blockchain ORDER BY block_index ASC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var blocks []*Block
	for rows.Next() {
		b := &Block{}
		if err := rows.Scan(&b.Index, &b.TransactionID, &b.PreviousHash, &b.CurrentHash, &b.Timestamp); err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

func (p *PostgresStore) GetByTransaction(ctx context.Context, txID string) (*Block, error) {
	b := &Block{}
	err := p.db.QueryRowContext(ctx, `
		SELECT block_index, transaction_id, previous_hash, current_hash, created_at
		FROM blockchain WHERE LOWER(transaction_id) = LOWER($1) LIMIT 1
	`, txID).Scan(&b.Index, &b.TransactionID, &b.PreviousHash, &b.CurrentHash, &b.Timestamp)
	if err == sql.ErrNoRows {
		return nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (p *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blockchain`).Scan(&n)
	return n, err
}
