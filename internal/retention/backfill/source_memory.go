package backfill

import (
	"context"
	"sort"
	"sync"
)

// InMemoryEventSource holds event rows in memory. Intended for tests and
// local development.
type InMemoryEventSource struct {
	mu     sync.Mutex
	events map[string]*memoryEvent
}

type memoryEvent struct {
	record EventRecord
	ipHash string
}

func NewInMemoryEventSource() *InMemoryEventSource {
	return &InMemoryEventSource{events: make(map[string]*memoryEvent)}
}

func (s *InMemoryEventSource) Insert(record EventRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[record.ID] = &memoryEvent{record: record}
}

func (s *InMemoryEventSource) NextBatch(_ context.Context, afterID string, limit int) ([]EventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.events))
	for id, event := range s.events {
		if event.ipHash != "" {
			continue
		}
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}

	batch := make([]EventRecord, 0, len(ids))
	for _, id := range ids {
		batch = append(batch, s.events[id].record)
	}
	return batch, nil
}

func (s *InMemoryEventSource) ApplyHashes(_ context.Context, updates []HashUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, update := range updates {
		if event, ok := s.events[update.ID]; ok {
			event.ipHash = update.IPHash
		}
	}
	return nil
}

// HashFor reports the stored hash for an event, empty if unhashed.
func (s *InMemoryEventSource) HashFor(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event, ok := s.events[id]; ok {
		return event.ipHash
	}
	return ""
}
