package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore implements Store with PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed ledger store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the ledger tables
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS balance_transactions (
			id           VARCHAR(64) PRIMARY KEY,
			type         VARCHAR(20) NOT NULL,
			amount_cents BIGINT NOT NULL,
			currency     VARCHAR(3) NOT NULL DEFAULT 'usd',
			status       VARCHAR(20),
			description  TEXT,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT chk_amount_positive CHECK (amount_cents > 0)
		);

		CREATE INDEX IF NOT EXISTS idx_balance_txns_created ON balance_transactions(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_balance_txns_type ON balance_transactions(type, created_at DESC);
	`)
	return err
}

func (p *PostgresStore) Insert(ctx context.Context, txn *Transaction) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO balance_transactions (id, type, amount_cents, currency, status, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, txn.ID, string(txn.Type), txn.Amount, txn.Currency, nullable(txn.Status), nullable(txn.Description), txn.Created)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (p *PostgresStore) FetchSince(ctx context.Context, since time.Time) ([]*Transaction, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, type, amount_cents, currency, status, description, created_at
		FROM balance_transactions
		WHERE created_at >= $1
		ORDER BY created_at ASC, id ASC
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []*Transaction
	for rows.Next() {
		txn := &Transaction{}
		var typ string
		var status, description sql.NullString
		if err := rows.Scan(&txn.ID, &typ, &txn.Amount, &txn.Currency, &status, &description, &txn.Created); err != nil {
			return nil, err
		}
		txn.Type = Type(typ)
		txn.Status = status.String
		txn.Description = description.String
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

func (p *PostgresStore) CountByType(ctx context.Context, typ Type, since time.Time) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM balance_transactions WHERE type = $1 AND created_at >= $2
	`, string(typ), since).Scan(&count)
	return count, err
}

func (p *PostgresStore) BaselineDailyRate(ctx context.Context, days int, before time.Time) (float64, error) {
	start := before.AddDate(0, 0, -days)
	var count int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM balance_transactions
		WHERE type = 'charge' AND created_at >= $1 AND created_at < $2
	`, start, before).Scan(&count)
	if err != nil {
		return 0, err
	}
	return float64(count) / float64(days), nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
