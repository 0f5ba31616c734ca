package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetMissingReturnsNil(t *testing.T) {
	store := NewInMemoryStore()

	settings, err := store.Get(context.Background(), "tenant-a")
	require.NoError(t, err)
	require.Nil(t, settings)
}

func TestUpsertAndGet(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &Settings{
		TenantID:           "tenant-a",
		Name:               "Acme",
		EventRetentionDays: 90,
		RawIPRetentionDays: 30,
	}))

	got, err := store.Get(ctx, "tenant-a")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, 90, got.EventRetentionDays)
	require.Equal(t, 30, got.RawIPRetentionDays)

	// Upsert replaces.
	require.NoError(t, store.Upsert(ctx, &Settings{
		TenantID:           "tenant-a",
		Name:               "Acme",
		EventRetentionDays: 60,
		RawIPRetentionDays: 14,
	}))
	got, err = store.Get(ctx, "tenant-a")
	require.NoError(t, err)
	require.Equal(t, 60, got.EventRetentionDays)
}

func TestGetReturnsCopy(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &Settings{TenantID: "tenant-a", EventRetentionDays: 90}))

	got, _ := store.Get(ctx, "tenant-a")
	got.EventRetentionDays = 1

	again, _ := store.Get(ctx, "tenant-a")
	require.Equal(t, 90, again.EventRetentionDays)
}

func TestListIDsSorted(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"tenant-c", "tenant-a", "tenant-b"} {
		require.NoError(t, store.Upsert(ctx, &Settings{TenantID: id}))
	}

	ids, err := store.ListIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"tenant-a", "tenant-b", "tenant-c"}, ids)
}
