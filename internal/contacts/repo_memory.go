package contacts

import (
	"context"
	"sync"
)

// MemoryStore is a simple in-memory contact store useful for tests and early
// development. The production store belongs to the CRM service.
type MemoryStore struct {
	mu       sync.Mutex
	contacts map[string]Contact
}

func NewMemoryStore(seed ...Contact) *MemoryStore {
	s := &MemoryStore{contacts: make(map[string]Contact, len(seed))}
	for _, c := range seed {
		s.contacts[c.ID] = c
	}
	return s
}

func (s *MemoryStore) GetContact(ctx context.Context, id string) (Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[id]
	if !ok {
		return Contact{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) UpdateDisposition(ctx context.Context, id string, value Disposition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = value
	s.contacts[id] = c
	return nil
}
