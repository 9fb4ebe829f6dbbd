// Package ledger tracks payment activity for the merchant account.
//
// Flow:
//  1. Transactions are recorded (demo seed, API ingest, or Stripe import)
//  2. The risk analyzer reads a recent window plus a historical baseline
//  3. Routing consults the resulting freeze risk profile
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/mbd888/payrails/internal/idgen"
	"github.com/mbd888/payrails/internal/metrics"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidType   = errors.New("invalid transaction type")
	ErrReadOnly      = errors.New("ledger source is read-only")
	ErrNotFound      = errors.New("transaction not found")
)

// Type classifies a ledger transaction.
type Type string

const (
	TypeCharge     Type = "charge"
	TypeRefund     Type = "refund"
	TypeAdjustment Type = "adjustment"
)

// Valid reports whether t is a known transaction type.
func (t Type) Valid() bool {
	switch t {
	case TypeCharge, TypeRefund, TypeAdjustment:
		return true
	}
	return false
}

// Transaction is a single entry of payment activity.
// Amount is in minor units (cents) and always positive; Type carries direction.
type Transaction struct {
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status,omitempty"`
	Description string    `json:"description,omitempty"`
	Created     time.Time `json:"created"`
}

// Store persists ledger transactions and serves the windows the risk
// analyzer reads.
type Store interface {
	Insert(ctx context.Context, txn *Transaction) error
	FetchSince(ctx context.Context, since time.Time) ([]*Transaction, error)
	CountByType(ctx context.Context, typ Type, since time.Time) (int, error)
	// BaselineDailyRate returns the average daily charge count over the
	// days-long window ending at before.
	BaselineDailyRate(ctx context.Context, days int, before time.Time) (float64, error)
}

// Reader is the read-only view the risk analyzer depends on.
type Reader interface {
	FetchSince(ctx context.Context, since time.Time) ([]*Transaction, error)
	BaselineDailyRate(ctx context.Context, days int, before time.Time) (float64, error)
}

// Ledger manages recorded payment activity.
type Ledger struct {
	store Store
}

// New creates a new ledger backed by store.
func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// Record validates and persists a transaction. Assigns an ID and timestamp
// when the caller leaves them zero.
func (l *Ledger) Record(ctx context.Context, txn *Transaction) error {
	if txn.Amount <= 0 {
		return ErrInvalidAmount
	}
	if !txn.Type.Valid() {
		return ErrInvalidType
	}
	if txn.ID == "" {
		txn.ID = idgen.WithPrefix("txn_")
	}
	if txn.Created.IsZero() {
		txn.Created = time.Now().UTC()
	}
	if txn.Currency == "" {
		txn.Currency = "usd"
	}

	if err := l.store.Insert(ctx, txn); err != nil {
		return err
	}
	metrics.LedgerTransactionsTotal.WithLabelValues(string(txn.Type)).Inc()
	return nil
}

// Window returns all transactions created at or after since, oldest first.
func (l *Ledger) Window(ctx context.Context, since time.Time) ([]*Transaction, error) {
	return l.store.FetchSince(ctx, since)
}

// FetchSince implements Reader.
func (l *Ledger) FetchSince(ctx context.Context, since time.Time) ([]*Transaction, error) {
	return l.store.FetchSince(ctx, since)
}

// BaselineDailyRate implements Reader.
func (l *Ledger) BaselineDailyRate(ctx context.Context, days int, before time.Time) (float64, error) {
	if days <= 0 {
		days = 30
	}
	return l.store.BaselineDailyRate(ctx, days, before)
}

// CountByType returns the number of transactions of the given type since a cutoff.
func (l *Ledger) CountByType(ctx context.Context, typ Type, since time.Time) (int, error) {
	if !typ.Valid() {
		return 0, ErrInvalidType
	}
	return l.store.CountByType(ctx, typ, since)
}
