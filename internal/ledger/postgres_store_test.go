package ledger

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/mbd888/payrails/internal/testutil"
)

func TestPostgresStore_InsertAndFetch(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	txns := []*Transaction{
		{ID: "txn_1", Type: TypeCharge, Amount: 5000, Currency: "usd", Created: now.Add(-2 * time.Hour)},
		{ID: "txn_2", Type: TypeRefund, Amount: 1200, Currency: "usd", Created: now.Add(-1 * time.Hour)},
		{ID: "txn_3", Type: TypeCharge, Amount: 800, Currency: "usd", Created: now.Add(-30 * time.Minute)},
	}
	for _, txn := range txns {
		if err := store.Insert(ctx, txn); err != nil {
			t.Fatalf("Insert(%s): %v", txn.ID, err)
		}
	}

	got, err := store.FetchSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("FetchSince: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(got))
	}
	if got[0].ID != "txn_1" || got[2].ID != "txn_3" {
		t.Errorf("expected oldest-first ordering, got %s..%s", got[0].ID, got[2].ID)
	}
}

func TestPostgresStore_CountByType(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, typ := range []Type{TypeCharge, TypeCharge, TypeRefund} {
		txn := &Transaction{
			ID:       "txn_count_" + string(rune('a'+i)),
			Type:     typ,
			Amount:   1000,
			Currency: "usd",
			Created:  now.Add(-time.Minute),
		}
		if err := store.Insert(ctx, txn); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	charges, err := store.CountByType(ctx, TypeCharge, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("CountByType: %v", err)
	}
	if charges != 2 {
		t.Errorf("expected 2 charges, got %d", charges)
	}
}

func TestPostgresStore_BaselineDailyRate(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	// 30 charges over the baseline window = 1/day at 30 days.
	for i := 0; i < 30; i++ {
		txn := &Transaction{
			ID:       "txn_base_" + strconv.Itoa(i),
			Type:     TypeCharge,
			Amount:   1000,
			Currency: "usd",
			Created:  now.AddDate(0, 0, -i).Add(-time.Hour),
		}
		if err := store.Insert(ctx, txn); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	rate, err := store.BaselineDailyRate(ctx, 30, now)
	if err != nil {
		t.Fatalf("BaselineDailyRate: %v", err)
	}
	if rate != 1.0 {
		t.Errorf("expected baseline 1.0/day, got %f", rate)
	}
}
