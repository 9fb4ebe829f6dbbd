package ledger

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// StripeStore reads balance transactions from the Stripe API. It is a
// read-only ledger source: the account's real activity already lives in
// Stripe, so Insert is rejected.
type StripeStore struct {
	api *client.API
}

// NewStripeStore creates a Stripe-backed ledger source.
func NewStripeStore(apiKey string) *StripeStore {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &StripeStore{api: api}
}

func (s *StripeStore) Insert(ctx context.Context, txn *Transaction) error {
	return ErrReadOnly
}

func (s *StripeStore) FetchSince(ctx context.Context, since time.Time) ([]*Transaction, error) {
	params := &stripe.BalanceTransactionListParams{
		CreatedRange: &stripe.RangeQueryParams{
			GreaterThanOrEqual: since.Unix(),
		},
	}
	params.Context = ctx
	params.Limit = stripe.Int64(100)

	var txns []*Transaction
	iter := s.api.BalanceTransactions.List(params)
	for iter.Next() {
		bt := iter.BalanceTransaction()
		txn := fromBalanceTransaction(bt)
		if txn != nil {
			txns = append(txns, txn)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	// Stripe returns newest first; the analyzer expects oldest first.
	for i, j := 0, len(txns)-1; i < j; i, j = i+1, j-1 {
		txns[i], txns[j] = txns[j], txns[i]
	}
	return txns, nil
}

func (s *StripeStore) CountByType(ctx context.Context, typ Type, since time.Time) (int, error) {
	txns, err := s.FetchSince(ctx, since)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, txn := range txns {
		if txn.Type == typ {
			count++
		}
	}
	return count, nil
}

func (s *StripeStore) BaselineDailyRate(ctx context.Context, days int, before time.Time) (float64, error) {
	start := before.AddDate(0, 0, -days)
	txns, err := s.FetchSince(ctx, start)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, txn := range txns {
		if txn.Type == TypeCharge && txn.Created.Before(before) {
			count++
		}
	}
	return float64(count) / float64(days), nil
}

// fromBalanceTransaction maps a Stripe balance transaction to a ledger
// transaction. Returns nil for types that carry no routing signal
// (payouts, fees, transfers).
func fromBalanceTransaction(bt *stripe.BalanceTransaction) *Transaction {
	var typ Type
	switch bt.Type {
	case stripe.BalanceTransactionTypeCharge, stripe.BalanceTransactionTypePayment:
		typ = TypeCharge
	case stripe.BalanceTransactionTypeRefund, stripe.BalanceTransactionTypePaymentRefund:
		typ = TypeRefund
	case stripe.BalanceTransactionTypeAdjustment:
		typ = TypeAdjustment
	default:
		return nil
	}

	amount := bt.Amount
	if amount < 0 {
		amount = -amount
	}
	if amount == 0 {
		return nil
	}

	return &Transaction{
		ID:          bt.ID,
		Type:        typ,
		Amount:      amount,
		Currency:    string(bt.Currency),
		Status:      string(bt.Status),
		Description: bt.Description,
		Created:     time.Unix(bt.Created, 0).UTC(),
	}
}
