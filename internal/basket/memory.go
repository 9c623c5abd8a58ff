package basket

import (
	"context"
	"sync"
)

// MemoryStore keeps baskets in process memory.  It is used when no
// Redis client could be established and by tests.
type MemoryStore struct {
	mu      sync.Mutex
	baskets map[string]*memoryBasket
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{baskets: make(map[string]*memoryBasket)}
}

// ForSession returns the basket for one session identifier, creating
// it on first use.
func (s *MemoryStore) ForSession(sessionID string) Basket {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.baskets[sessionID]
	if !ok {
		b = &memoryBasket{}
		s.baskets[sessionID] = b
	}
	return b
}

type memoryBasket struct {
	mu    sync.Mutex
	items []uint64
}

func (b *memoryBasket) Add(_ context.Context, itemID uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range b.items {
		if id == itemID {
			return ErrAlreadyInBasket
		}
	}
	b.items = append(b.items, itemID)
	return nil
}

func (b *memoryBasket) Remove(_ context.Context, itemID uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, id := range b.items {
		if id == itemID {
			b.items = append(b.items[:i], b.items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (b *memoryBasket) List(_ context.Context) ([]uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]uint64, len(b.items))
	copy(out, b.items)
	return out, nil
}

func (b *memoryBasket) Clear(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = nil
	return nil
}
