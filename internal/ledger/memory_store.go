package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory ledger store for demo/development mode.
type MemoryStore struct {
	txns map[string]*Transaction
	mu   sync.RWMutex
}

// NewMemoryStore creates a new in-memory ledger store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		txns: make(map[string]*Transaction),
	}
}

func (m *MemoryStore) Insert(ctx context.Context, txn *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *txn
	m.txns[txn.ID] = &cp
	return nil
}

func (m *MemoryStore) FetchSince(ctx context.Context, since time.Time) ([]*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Transaction
	for _, txn := range m.txns {
		if !txn.Created.Before(since) {
			cp := *txn
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Created.Equal(result[j].Created) {
			return result[i].ID < result[j].ID
		}
		return result[i].Created.Before(result[j].Created)
	})
	return result, nil
}

func (m *MemoryStore) CountByType(ctx context.Context, typ Type, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, txn := range m.txns {
		if txn.Type == typ && !txn.Created.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) BaselineDailyRate(ctx context.Context, days int, before time.Time) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := before.AddDate(0, 0, -days)
	count := 0
	for _, txn := range m.txns {
		if txn.Type != TypeCharge {
			continue
		}
		if txn.Created.Before(start) || !txn.Created.Before(before) {
			continue
		}
		count++
	}
	return float64(count) / float64(days), nil
}
