package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/embedq/embedq/domain/vectorizer"
	"github.com/embedq/embedq/internal/database"
)

// newTestDB creates an in-memory SQLite database for testing.
// Cannot use testdb package here due to import cycle (testdb imports persistence).
func newTestDB(t *testing.T) database.Database {
	t.Helper()
	ctx := context.Background()
	db, err := database.NewDatabase(ctx, "sqlite:///:memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// newMigratedDB creates an in-memory SQLite database with the registry
// schema applied.
func newMigratedDB(t *testing.T) database.Database {
	t.Helper()
	db := newTestDB(t)
	require.NoError(t, AutoMigrate(db))
	return db
}

func exec(t *testing.T, db database.Database, sql string, args ...any) {
	t.Helper()
	require.NoError(t, db.Session(context.Background()).Exec(sql, args...).Error)
}

// articlesVectorizer returns a vectorizer over a simple articles table with
// a single integer primary key and a table destination.
func articlesVectorizer(t *testing.T) vectorizer.Vectorizer {
	t.Helper()
	cfg := vectorizer.Config{
		Loading:   vectorizer.NewLoadingColumn("body"),
		Embedding: vectorizer.NewEmbeddingOpenAI("text-embedding-3-small", 3),
	}.Resolve(vectorizer.Defaults{})

	dest := vectorizer.NewDestinationTable()
	dest.TargetTable = "articles_embedding_store"
	dest.ViewName = "articles_embedding"
	cfg.Destination = dest

	return vectorizer.NewVectorizerWithID(
		1, "articles", "articles",
		[]vectorizer.PKColumn{{Name: "id", Type: "INTEGER"}},
		"vectorizer_trg_1", "vectorizer_q_1", "vectorizer_q_failed_1",
		cfg, true, time.Time{}, time.Time{},
	)
}

// ordersVectorizer returns a vectorizer with a composite text/int primary
// key for exercising multi-column key plumbing.
func ordersVectorizer(t *testing.T) vectorizer.Vectorizer {
	t.Helper()
	cfg := vectorizer.Config{
		Loading:   vectorizer.NewLoadingColumn("notes"),
		Embedding: vectorizer.NewEmbeddingOpenAI("text-embedding-3-small", 3),
	}.Resolve(vectorizer.Defaults{})

	return vectorizer.NewVectorizerWithID(
		2, "orders", "orders",
		[]vectorizer.PKColumn{{Name: "region", Type: "TEXT"}, {Name: "seq", Type: "INTEGER"}},
		"vectorizer_trg_2", "vectorizer_q_2", "vectorizer_q_failed_2",
		cfg, true, time.Time{}, time.Time{},
	)
}

// createArticlesSchema creates the source and destination tables the
// articles vectorizer expects.
func createArticlesSchema(t *testing.T, db database.Database) {
	t.Helper()
	exec(t, db, `CREATE TABLE articles (id INTEGER PRIMARY KEY, title TEXT, body TEXT)`)
	exec(t, db, `CREATE TABLE articles_embedding_store (
		embedding_uuid TEXT PRIMARY KEY,
		id INTEGER NOT NULL,
		chunk_seq INTEGER NOT NULL,
		chunk TEXT NOT NULL,
		embedding TEXT NOT NULL,
		generated_at TIMESTAMP NOT NULL,
		UNIQUE (id, chunk_seq)
	)`)
}
