package memory

import (
	"context"
	"sync"
)

// EntitlementStore keeps the unlock flag in process memory.
type EntitlementStore struct {
	mu      sync.RWMutex
	granted bool
	writes  int
}

func NewEntitlementStore() *EntitlementStore {
	return &EntitlementStore{}
}

func (s *EntitlementStore) Read(ctx context.Context) (bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.granted, nil
}

func (s *EntitlementStore) Write(ctx context.Context, granted bool) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.granted = granted
	s.writes++
	return nil
}

func (s *EntitlementStore) Clear(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.granted = false
	return nil
}

// Writes reports how many times Write was called.
func (s *EntitlementStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
