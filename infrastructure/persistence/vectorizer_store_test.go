package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embedq/embedq/domain/store"
	"github.com/embedq/embedq/domain/vectorizer"
	"github.com/embedq/embedq/internal/database"
)

func TestVectorizerStoreSaveAssignsID(t *testing.T) {
	ctx := context.Background()
	s := NewVectorizerStore(newMigratedDB(t))

	saved, err := s.Save(ctx, articlesVectorizer(t).WithID(0))
	require.NoError(t, err)
	assert.NotZero(t, saved.ID())
	assert.Equal(t, "articles", saved.Name())
	assert.True(t, saved.Enabled())
}

func TestVectorizerStoreSaveRejectsDuplicateName(t *testing.T) {
	ctx := context.Background()
	s := NewVectorizerStore(newMigratedDB(t))

	_, err := s.Save(ctx, articlesVectorizer(t).WithID(0))
	require.NoError(t, err)

	_, err = s.Save(ctx, articlesVectorizer(t).WithID(0))
	require.Error(t, err)
	assert.ErrorIs(t, err, vectorizer.ErrDuplicate)
}

func TestVectorizerStoreSaveUpdatesExisting(t *testing.T) {
	ctx := context.Background()
	s := NewVectorizerStore(newMigratedDB(t))

	saved, err := s.Save(ctx, articlesVectorizer(t).WithID(0))
	require.NoError(t, err)

	updated, err := s.Save(ctx, saved.WithEnabled(false))
	require.NoError(t, err)
	assert.Equal(t, saved.ID(), updated.ID())
	assert.False(t, updated.Enabled())

	got, err := s.Get(ctx, saved.ID())
	require.NoError(t, err)
	assert.False(t, got.Enabled())
}

func TestVectorizerStoreRoundTripsConfig(t *testing.T) {
	ctx := context.Background()
	s := NewVectorizerStore(newMigratedDB(t))

	saved, err := s.Save(ctx, articlesVectorizer(t).WithID(0))
	require.NoError(t, err)

	got, err := s.GetByName(ctx, "articles")
	require.NoError(t, err)
	assert.Equal(t, saved.Config(), got.Config())
	assert.Equal(t, saved.SourcePK(), got.SourcePK())
}

func TestVectorizerStoreGetNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewVectorizerStore(newMigratedDB(t))

	_, err := s.Get(ctx, 42)
	assert.ErrorIs(t, err, database.ErrNotFound)

	_, err = s.GetByName(ctx, "missing")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestVectorizerStoreFind(t *testing.T) {
	ctx := context.Background()
	s := NewVectorizerStore(newMigratedDB(t))

	first, err := s.Save(ctx, articlesVectorizer(t).WithID(0))
	require.NoError(t, err)
	_, err = s.Save(ctx, ordersVectorizer(t).WithID(0).WithEnabled(false))
	require.NoError(t, err)

	all, err := s.Find(ctx, store.WithOrderAsc("id"))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID(), all[0].ID())

	enabled, err := s.Find(ctx, store.WithEnabled(true))
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "articles", enabled[0].Name())
}

func TestVectorizerStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewVectorizerStore(newMigratedDB(t))

	saved, err := s.Save(ctx, articlesVectorizer(t).WithID(0))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, saved.ID()))

	_, err = s.Get(ctx, saved.ID())
	assert.ErrorIs(t, err, database.ErrNotFound)
}
