package deployment

import (
	"context"
	"sync"
)

// StatusStore keeps runtime enablement overrides by application name.
type StatusStore interface {
	// Enabled reports the stored state. known is false when nothing is
	// stored for name.
	Enabled(ctx context.Context, name string) (enabled, known bool, err error)
	SetEnabled(ctx context.Context, name string, enabled bool) error
	Forget(ctx context.Context, name string) error
}

// MemoryStore is a process-local StatusStore.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]bool)}
}

// Enabled implements StatusStore.
func (s *MemoryStore) Enabled(_ context.Context, name string) (bool, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	enabled, known := s.states[name]

	return enabled, known, nil
}

// SetEnabled implements StatusStore.
func (s *MemoryStore) SetEnabled(_ context.Context, name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[name] = enabled

	return nil
}

// Forget implements StatusStore.
func (s *MemoryStore) Forget(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.states, name)

	return nil
}
