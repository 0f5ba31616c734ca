package tenant

import (
	"context"
	"sort"
	"sync"
)

// InMemoryStore keeps tenant settings in process memory for tests and
// single-instance development.
type InMemoryStore struct {
	mu       sync.RWMutex
	settings map[string]*Settings
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{settings: make(map[string]*Settings)}
}

func (s *InMemoryStore) Get(_ context.Context, tenantID string) (*Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	settings, ok := s.settings[tenantID]
	if !ok {
		return nil, nil
	}
	copied := *settings
	return &copied, nil
}

func (s *InMemoryStore) Upsert(_ context.Context, settings *Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *settings
	s.settings[settings.TenantID] = &copied
	return nil
}

func (s *InMemoryStore) ListIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.settings))
	for id := range s.settings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
