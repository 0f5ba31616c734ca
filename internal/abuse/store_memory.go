package abuse

import (
	"context"
	"hash/fnv"
	"sync"
)

// shardCount spreads subjects across independently locked shards. Hot
// subjects contend only within their shard; the rest of the key space stays
// uncontended.
const shardCount = 64

type stateShard struct {
	mu       sync.Mutex
	subjects map[string]*SubjectState
}

// InMemoryStore keeps subject state in process memory with per-shard
// locking. State does not survive restarts and is not shared across
// instances; acceptable only for a single-instance deployment. Multi-
// instance deployments use the Redis store.
type InMemoryStore struct {
	shards [shardCount]*stateShard
}

func NewInMemoryStore() *InMemoryStore {
	store := &InMemoryStore{}
	for i := range store.shards {
		store.shards[i] = &stateShard{subjects: make(map[string]*SubjectState)}
	}
	return store
}

func (s *InMemoryStore) shardFor(subject string) *stateShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(subject))
	return s.shards[h.Sum32()%shardCount]
}

func (s *InMemoryStore) Get(_ context.Context, subject string) (*SubjectState, error) {
	shard := s.shardFor(subject)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	state, ok := shard.subjects[subject]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (s *InMemoryStore) Update(_ context.Context, subject string, fn func(*SubjectState) *SubjectState) (*SubjectState, error) {
	shard := s.shardFor(subject)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	var current *SubjectState
	if existing, ok := shard.subjects[subject]; ok {
		copied := *existing
		current = &copied
	}
	next := fn(current)
	if next == nil {
		delete(shard.subjects, subject)
		return nil, nil
	}
	stored := *next
	shard.subjects[subject] = &stored
	result := stored
	return &result, nil
}

func (s *InMemoryStore) Reset(_ context.Context) error {
	for _, shard := range s.shards {
		shard.mu.Lock()
		shard.subjects = make(map[string]*SubjectState)
		shard.mu.Unlock()
	}
	return nil
}
