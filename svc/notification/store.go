package notification

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Store persists notification delivery records.
type Store interface {
	Create(ctx context.Context, n Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (Notification, error)
	Update(ctx context.Context, n Notification) error
}

// MemoryStore is an in-process Store for tests.
type MemoryStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]Notification
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[uuid.UUID]Notification)}
}

func (s *MemoryStore) Create(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[n.ID] = n
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	if !ok {
		return Notification{}, ErrNotFound
	}
	return n, nil
}

func (s *MemoryStore) Update(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[n.ID]; !ok {
		return ErrNotFound
	}
	s.items[n.ID] = n
	return nil
}
