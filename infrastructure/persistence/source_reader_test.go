package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embedq/embedq/domain/queue"
)

func TestSourceReaderLoad(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	createArticlesSchema(t, db)
	exec(t, db, `INSERT INTO articles (id, title, body) VALUES (1, 'hello', 'world')`)

	r, err := NewSourceReader(db, articlesVectorizer(t))
	require.NoError(t, err)

	row, found, err := r.Load(ctx, queue.NewKey(int64(1)))
	require.NoError(t, err)
	require.True(t, found)

	body, ok := row.Column("body")
	require.True(t, ok)
	assert.Equal(t, "world", body)

	title, ok := row.Column("title")
	require.True(t, ok)
	assert.Equal(t, "hello", title)

	_, ok = row.Column("missing")
	assert.False(t, ok)
}

func TestSourceReaderLoadDeletedRow(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	createArticlesSchema(t, db)

	r, err := NewSourceReader(db, articlesVectorizer(t))
	require.NoError(t, err)

	_, found, err := r.Load(ctx, queue.NewKey(int64(99)))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSourceRowColumnNullValue(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	createArticlesSchema(t, db)
	exec(t, db, `INSERT INTO articles (id, title, body) VALUES (1, NULL, NULL)`)

	r, err := NewSourceReader(db, articlesVectorizer(t))
	require.NoError(t, err)

	row, found, err := r.Load(ctx, queue.NewKey(int64(1)))
	require.NoError(t, err)
	require.True(t, found)

	_, ok := row.Column("body")
	assert.False(t, ok, "NULL reads as absent")
}
