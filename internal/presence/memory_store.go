package presence

import (
	"context"
	"sync"
)

// memoryStore keeps online status in process memory. Correct only for
// single-instance deployments; entries never expire because the hub removes
// them on disconnect.
type memoryStore struct {
	mu     sync.RWMutex
	online map[string]struct{}
}

// NewMemoryStore creates an in-process presence store.
func NewMemoryStore() Store {
	return &memoryStore{online: make(map[string]struct{})}
}

func (s *memoryStore) SetOnline(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online[userID] = struct{}{}
	return nil
}

func (s *memoryStore) SetOffline(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.online, userID)
	return nil
}

func (s *memoryStore) Refresh(_ context.Context, _ string) error {
	return nil
}

func (s *memoryStore) IsOnline(_ context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.online[userID]
	return ok, nil
}

func (s *memoryStore) Close() error {
	return nil
}
