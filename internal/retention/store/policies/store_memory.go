// Package policies persists per-dataset retention policies.
package policies

import (
	"context"
	"sync"

	"custodian/internal/retention/models"
)

type policyKey struct {
	tenantID   string
	datasetKey string
}

// InMemoryStore keeps retention policies in process memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	policies map[policyKey]*models.RetentionPolicy
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{policies: make(map[policyKey]*models.RetentionPolicy)}
}

func (s *InMemoryStore) Get(_ context.Context, tenantID, datasetKey string) (*models.RetentionPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	policy, ok := s.policies[policyKey{tenantID, datasetKey}]
	if !ok {
		return nil, nil
	}
	copied := *policy
	return &copied, nil
}

func (s *InMemoryStore) Upsert(_ context.Context, policy *models.RetentionPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *policy
	s.policies[policyKey{policy.TenantID, policy.DatasetKey}] = &copied
	return nil
}

func (s *InMemoryStore) ListByTenant(_ context.Context, tenantID string) ([]*models.RetentionPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.RetentionPolicy
	for key, policy := range s.policies {
		if key.tenantID == tenantID {
			copied := *policy
			out = append(out, &copied)
		}
	}
	return out, nil
}
