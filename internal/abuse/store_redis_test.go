package abuse

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisTestStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client)
}

func TestRedisStoreGetMissing(t *testing.T) {
	store := newRedisTestStore(t)

	state, err := store.Get(context.Background(), "iphash:missing")
	require.NoError(t, err)
	require.Nil(t, state)
}

func TestRedisStoreUpdateRoundTrip(t *testing.T) {
	store := newRedisTestStore(t)
	ctx := context.Background()

	banUntil := testNow.Add(2 * time.Minute)
	updated, err := store.Update(ctx, "iphash:abc", func(prev *SubjectState) *SubjectState {
		require.Nil(t, prev)
		return &SubjectState{
			Count:       3,
			WindowStart: testNow,
			BanUntil:    &banUntil,
			ExpiresAt:   banUntil,
		}
	})
	require.NoError(t, err)
	require.Equal(t, 3, updated.Count)

	got, err := store.Get(ctx, "iphash:abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, 3, got.Count)
	require.True(t, got.WindowStart.Equal(testNow))
	require.NotNil(t, got.BanUntil)
	require.True(t, got.BanUntil.Equal(banUntil))
}

func TestRedisStoreUpdateNilDeletes(t *testing.T) {
	store := newRedisTestStore(t)
	ctx := context.Background()

	_, err := store.Update(ctx, "iphash:abc", func(*SubjectState) *SubjectState {
		return &SubjectState{Count: 1, WindowStart: testNow, ExpiresAt: testNow.Add(time.Minute)}
	})
	require.NoError(t, err)

	cleared, err := store.Update(ctx, "iphash:abc", func(*SubjectState) *SubjectState {
		return nil
	})
	require.NoError(t, err)
	require.Nil(t, cleared)

	got, err := store.Get(ctx, "iphash:abc")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRedisStoreConcurrentUpdatesAreAtomic(t *testing.T) {
	store := newRedisTestStore(t)
	ctx := context.Background()

	const goroutines = 10
	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "iphash:hot", func(prev *SubjectState) *SubjectState {
				if prev == nil {
					prev = &SubjectState{WindowStart: testNow, ExpiresAt: testNow.Add(time.Minute)}
				}
				prev.Count++
				return prev
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, "iphash:hot")
	require.NoError(t, err)
	require.Equal(t, goroutines, got.Count)
}

func TestRedisStoreReset(t *testing.T) {
	store := newRedisTestStore(t)
	ctx := context.Background()

	for i := range 5 {
		subject := fmt.Sprintf("iphash:%d", i)
		_, err := store.Update(ctx, subject, func(*SubjectState) *SubjectState {
			return &SubjectState{Count: 1, WindowStart: testNow, ExpiresAt: testNow.Add(time.Minute)}
		})
		require.NoError(t, err)
	}

	require.NoError(t, store.Reset(ctx))

	for i := range 5 {
		got, err := store.Get(ctx, fmt.Sprintf("iphash:%d", i))
		require.NoError(t, err)
		require.Nil(t, got)
	}
}

func TestRedisEngineEndToEnd(t *testing.T) {
	store := newRedisTestStore(t)
	engine, err := New(store)
	require.NoError(t, err)
	ctx := context.Background()

	var banUntil *time.Time
	for i := range testThreshold {
		banUntil, err = engine.RegisterAttempt(ctx, "iphash:abc", testThreshold, testWindow, testBan, testNow.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}
	require.NotNil(t, banUntil)

	banned, retryAfter, err := engine.IsBanned(ctx, "iphash:abc", testNow.Add(3*time.Second))
	require.NoError(t, err)
	require.True(t, banned)
	require.Positive(t, retryAfter)
}
