package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaseStoreAcquire(t *testing.T) {
	ctx := context.Background()
	s := NewLeaseStore(newMigratedDB(t))

	ok, err := s.Acquire(ctx, "idx_articles", "worker-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// Another holder is locked out while the lease is live.
	ok, err = s.Acquire(ctx, "idx_articles", "worker-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// The holder can renew.
	ok, err = s.Acquire(ctx, "idx_articles", "worker-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// A different resource is independent.
	ok, err = s.Acquire(ctx, "idx_orders", "worker-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLeaseStoreAcquireTakesOverExpired(t *testing.T) {
	ctx := context.Background()
	s := NewLeaseStore(newMigratedDB(t))

	ok, err := s.Acquire(ctx, "idx_articles", "worker-a", -time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Acquire(ctx, "idx_articles", "worker-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired lease is free to take")
}

func TestLeaseStoreRelease(t *testing.T) {
	ctx := context.Background()
	s := NewLeaseStore(newMigratedDB(t))

	ok, err := s.Acquire(ctx, "idx_articles", "worker-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// A non-holder release is a no-op.
	require.NoError(t, s.Release(ctx, "idx_articles", "worker-b"))
	ok, err = s.Acquire(ctx, "idx_articles", "worker-c", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Release(ctx, "idx_articles", "worker-a"))
	ok, err = s.Acquire(ctx, "idx_articles", "worker-c", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
