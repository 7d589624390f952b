package provision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embedq/embedq/domain/vectorizer"
	"github.com/embedq/embedq/internal/database"
	"github.com/embedq/embedq/internal/testdb"
)

func TestInspectTable(t *testing.T) {
	db := testdb.WithSchema(t,
		`CREATE TABLE articles (id INTEGER PRIMARY KEY, title TEXT, body TEXT, pdf BLOB)`,
	)
	inspector := NewInspector(db)

	table, err := inspector.InspectTable(context.Background(), "articles")
	require.NoError(t, err)

	assert.Equal(t, "articles", table.Name)
	require.Len(t, table.Columns, 4)

	pk := table.PrimaryKey()
	require.Len(t, pk, 1)
	assert.Equal(t, "id", pk[0].Name)
	assert.Equal(t, "INTEGER", pk[0].Type)

	body, ok := table.Column("body")
	require.True(t, ok)
	assert.False(t, body.IsPrimaryKey)
	assert.Equal(t, "TEXT", body.Type)
}

func TestInspectTableCompositeKeyOrder(t *testing.T) {
	// The key columns are declared in the opposite of table order; the
	// inspector must report them in key order.
	db := testdb.WithSchema(t,
		`CREATE TABLE orders (seq INTEGER, region TEXT, total INTEGER, PRIMARY KEY (region, seq))`,
	)
	inspector := NewInspector(db)

	table, err := inspector.InspectTable(context.Background(), "orders")
	require.NoError(t, err)

	pk := table.PrimaryKey()
	require.Len(t, pk, 2)
	assert.Equal(t, "region", pk[0].Name)
	assert.Equal(t, "seq", pk[1].Name)
}

func TestInspectTableErrors(t *testing.T) {
	db := testdb.WithSchema(t,
		`CREATE TABLE keyless (value TEXT)`,
	)
	inspector := NewInspector(db)
	ctx := context.Background()

	t.Run("missing table", func(t *testing.T) {
		_, err := inspector.InspectTable(ctx, "nothing_here")
		assert.ErrorIs(t, err, database.ErrNotFound)
	})

	t.Run("no primary key", func(t *testing.T) {
		_, err := inspector.InspectTable(ctx, "keyless")
		assert.ErrorIs(t, err, vectorizer.ErrInvalidArgument)
	})

	t.Run("invalid identifier", func(t *testing.T) {
		_, err := inspector.InspectTable(ctx, "articles; DROP TABLE articles")
		assert.ErrorIs(t, err, vectorizer.ErrInvalidArgument)
	})
}
