package ledger

import (
	"context"
	"testing"
	"time"
)

func TestRecord_AssignsIDAndTimestamp(t *testing.T) {
	l := New(NewMemoryStore())
	ctx := context.Background()

	txn := &Transaction{Type: TypeCharge, Amount: 5000}
	if err := l.Record(ctx, txn); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if txn.ID == "" {
		t.Error("expected ID to be assigned")
	}
	if txn.Created.IsZero() {
		t.Error("expected Created to be assigned")
	}
	if txn.Currency != "usd" {
		t.Errorf("expected default currency usd, got %q", txn.Currency)
	}
}

func TestRecord_RejectsInvalid(t *testing.T) {
	l := New(NewMemoryStore())
	ctx := context.Background()

	if err := l.Record(ctx, &Transaction{Type: TypeCharge, Amount: 0}); err != ErrInvalidAmount {
		t.Errorf("zero amount: got %v, want ErrInvalidAmount", err)
	}
	if err := l.Record(ctx, &Transaction{Type: TypeCharge, Amount: -500}); err != ErrInvalidAmount {
		t.Errorf("negative amount: got %v, want ErrInvalidAmount", err)
	}
	if err := l.Record(ctx, &Transaction{Type: "payout", Amount: 100}); err != ErrInvalidType {
		t.Errorf("unknown type: got %v, want ErrInvalidType", err)
	}
}

func TestWindow_ReturnsOldestFirst(t *testing.T) {
	l := New(NewMemoryStore())
	ctx := context.Background()
	now := time.Now().UTC()

	for i, offset := range []time.Duration{-3 * time.Hour, -1 * time.Hour, -2 * time.Hour} {
		txn := &Transaction{
			ID:      string(rune('a' + i)),
			Type:    TypeCharge,
			Amount:  1000,
			Created: now.Add(offset),
		}
		if err := l.Record(ctx, txn); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	txns, err := l.Window(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(txns) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txns))
	}
	for i := 1; i < len(txns); i++ {
		if txns[i].Created.Before(txns[i-1].Created) {
			t.Errorf("transactions out of order at index %d", i)
		}
	}
}

func TestWindow_ExcludesOlderThanCutoff(t *testing.T) {
	l := New(NewMemoryStore())
	ctx := context.Background()
	now := time.Now().UTC()

	old := &Transaction{Type: TypeCharge, Amount: 1000, Created: now.Add(-48 * time.Hour)}
	recent := &Transaction{Type: TypeCharge, Amount: 1000, Created: now.Add(-1 * time.Hour)}
	for _, txn := range []*Transaction{old, recent} {
		if err := l.Record(ctx, txn); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	txns, err := l.Window(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("expected 1 transaction in window, got %d", len(txns))
	}
	if txns[0].ID != recent.ID {
		t.Errorf("expected recent transaction, got %s", txns[0].ID)
	}
}

func TestCountByType(t *testing.T) {
	l := New(NewMemoryStore())
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		if err := l.Record(ctx, &Transaction{Type: TypeCharge, Amount: 1000, Created: now}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		if err := l.Record(ctx, &Transaction{Type: TypeRefund, Amount: 500, Created: now}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	since := now.Add(-time.Hour)
	charges, err := l.CountByType(ctx, TypeCharge, since)
	if err != nil {
		t.Fatalf("CountByType: %v", err)
	}
	if charges != 5 {
		t.Errorf("expected 5 charges, got %d", charges)
	}

	refunds, err := l.CountByType(ctx, TypeRefund, since)
	if err != nil {
		t.Fatalf("CountByType: %v", err)
	}
	if refunds != 2 {
		t.Errorf("expected 2 refunds, got %d", refunds)
	}

	if _, err := l.CountByType(ctx, "payout", since); err != ErrInvalidType {
		t.Errorf("expected ErrInvalidType for unknown type, got %v", err)
	}
}

func TestBaselineDailyRate(t *testing.T) {
	store := NewMemoryStore()
	l := New(store)
	ctx := context.Background()
	now := time.Now().UTC()

	// 60 charges spread over the 30 days before now = 2/day.
	for i := 0; i < 60; i++ {
		txn := &Transaction{
			Type:    TypeCharge,
			Amount:  1000,
			Created: now.Add(-time.Duration(i*12) * time.Hour).Add(-time.Minute),
		}
		if err := l.Record(ctx, txn); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	// Refunds do not count toward the charge baseline.
	if err := l.Record(ctx, &Transaction{Type: TypeRefund, Amount: 500, Created: now.Add(-time.Hour)}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	rate, err := l.BaselineDailyRate(ctx, 30, now)
	if err != nil {
		t.Fatalf("BaselineDailyRate: %v", err)
	}
	if rate != 2.0 {
		t.Errorf("expected baseline 2.0/day, got %f", rate)
	}
}

func TestBaselineDailyRate_EmptyLedger(t *testing.T) {
	l := New(NewMemoryStore())
	rate, err := l.BaselineDailyRate(context.Background(), 30, time.Now())
	if err != nil {
		t.Fatalf("BaselineDailyRate: %v", err)
	}
	if rate != 0 {
		t.Errorf("expected 0 baseline for empty ledger, got %f", rate)
	}
}
