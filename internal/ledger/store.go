package ledger

import (
	"context"
	"slices"
	"sync"

	"ledger/internal/core"
)

// Store holds transactions in insertion order.
type Store interface {
	// All returns every transaction in insertion order.
	All(ctx context.Context) ([]core.Transaction, error)
	// Get returns the transaction with id, reporting whether it exists.
	Get(ctx context.Context, id int64) (core.Transaction, bool, error)
	// Append adds tx at the end of the list.
	Append(ctx context.Context, tx core.Transaction) error
	// Replace swaps the record with tx.ID in place, reporting whether it existed.
	Replace(ctx context.Context, tx core.Transaction) (bool, error)
	// Remove deletes the record with id, reporting whether it existed.
	Remove(ctx context.Context, id int64) (bool, error)
	// MaxID returns the highest id held, or 0 when empty.
	MaxID(ctx context.Context) (int64, error)
}

// Publisher receives committed changes, e.g. to feed an event bus.
type Publisher interface {
	Publish(ctx context.Context, change core.Change) error
}

// MemoryStore is a slice-backed Store.
type MemoryStore struct {
	mu    sync.Mutex
	items []core.Transaction
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) All(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items), nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (core.Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(id); i >= 0 {
		return s.items[i], true, nil
	}
	return core.Transaction{}, false, nil
}

func (s *MemoryStore) Append(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, tx)
	return nil
}

func (s *MemoryStore) Replace(_ context.Context, tx core.Transaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(tx.ID)
	if i < 0 {
		return false, nil
	}
	s.items[i] = tx
	return true, nil
}

func (s *MemoryStore) Remove(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return false, nil
	}
	s.items = slices.Delete(s.items, i, i+1)
	return true, nil
}

func (s *MemoryStore) MaxID(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var highest int64
	for _, tx := range s.items {
		if tx.ID > highest {
			highest = tx.ID
		}
	}
	return highest, nil
}

// index returns the position of id or -1.
func (s *MemoryStore) index(id int64) int {
	return slices.IndexFunc(s.items, func(tx core.Transaction) bool { return tx.ID == id })
}
