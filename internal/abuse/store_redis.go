package abuse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "abuse:subject:"
	// casRetries bounds optimistic-concurrency retries under contention.
	casRetries = 16
	// fallbackTTL guards entries whose ExpiresAt is unset.
	fallbackTTL = 24 * time.Hour
)

// RedisStore shares subject state across server instances. Per-subject
// atomicity comes from WATCH-based compare-and-swap on the subject key; keys
// expire with the state so abandoned subjects clean themselves up.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, subject string) (*SubjectState, error) {
	payload, err := s.client.Get(ctx, redisKeyPrefix+subject).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get subject state: %w", err)
	}
	return unmarshalState(payload)
}

func (s *RedisStore) Update(ctx context.Context, subject string, fn func(*SubjectState) *SubjectState) (*SubjectState, error) {
	key := redisKeyPrefix + subject
	var result *SubjectState

	transaction := func(tx *redis.Tx) error {
		var current *SubjectState
		payload, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("read subject state: %w", err)
		}
		if err == nil {
			if current, err = unmarshalState(payload); err != nil {
				return err
			}
		}

		next := fn(current)
		result = next

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, key)
				return nil
			}
			encoded, err := json.Marshal(next)
			if err != nil {
				return fmt.Errorf("marshal subject state: %w", err)
			}
			ttl := time.Until(next.ExpiresAt)
			if ttl <= 0 {
				ttl = fallbackTTL
			}
			pipe.Set(ctx, key, encoded, ttl)
			return nil
		})
		return err
	}

	for range casRetries {
		err := s.client.Watch(ctx, transaction, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue // lost the race, re-read and retry
		}
		return nil, err
	}
	return nil, fmt.Errorf("update subject state: exhausted %d cas retries", casRetries)
}

func (s *RedisStore) Reset(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("reset subject state: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan subject state: %w", err)
	}
	return nil
}

func unmarshalState(payload []byte) (*SubjectState, error) {
	var state SubjectState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("unmarshal subject state: %w", err)
	}
	return &state, nil
}
