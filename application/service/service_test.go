package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/embedq/embedq/domain/vectorizer"
	"github.com/embedq/embedq/infrastructure/embedder"
	"github.com/embedq/embedq/infrastructure/index"
	"github.com/embedq/embedq/infrastructure/persistence"
	"github.com/embedq/embedq/infrastructure/provision"
	"github.com/embedq/embedq/internal/database"
	"github.com/embedq/embedq/internal/testdb"
)

// fixture bundles the collaborators the service tests share: a migrated
// in-memory database with an articles source table, the registry store,
// and the lifecycle service plus a worker wired to the given embedder.
type fixture struct {
	db      database.Database
	store   persistence.VectorizerStore
	service *VectorizerService
	worker  *Worker
}

func newFixture(t *testing.T, emb embedder.Embedder) *fixture {
	t.Helper()
	db := testdb.New(t)

	exec(t, db, `CREATE TABLE articles (id INTEGER PRIMARY KEY, title TEXT, body TEXT)`)

	logger := testLogger()
	store := persistence.NewVectorizerStore(db)
	provisioner := provision.NewProvisioner(db, nil, nil)
	svc := NewVectorizerService(db, store, provisioner, vectorizer.Defaults{}, logger)

	processor := NewProcessor(db, embedder.NewFactory("", ""), emb, logger)
	manager := index.NewManager(db, persistence.NewLeaseStore(db), logger)
	worker := NewWorker(db, processor, manager, logger)

	return &fixture{db: db, store: store, service: svc, worker: worker}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func exec(t *testing.T, db database.Database, sql string, args ...any) {
	t.Helper()
	require.NoError(t, db.Session(context.Background()).Exec(sql, args...).Error)
}

func count(t *testing.T, db database.Database, sql string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Session(context.Background()).Raw(sql, args...).Scan(&n).Error)
	return n
}

func relationExists(t *testing.T, db database.Database, name string) bool {
	t.Helper()
	return count(t, db,
		`SELECT COUNT(*) FROM sqlite_master WHERE name = ? AND type IN ('table', 'view')`, name) > 0
}

func columnExists(t *testing.T, db database.Database, table, column string) bool {
	t.Helper()
	return count(t, db,
		`SELECT COUNT(*) FROM pragma_table_info('`+table+`') WHERE name = ?`, column) > 0
}

// bodyConfig is the simplest valid pipeline over the articles table. Create
// resolves the remaining stages itself.
func bodyConfig() vectorizer.Config {
	return vectorizer.Config{
		Loading:   vectorizer.NewLoadingColumn("body"),
		Embedding: vectorizer.NewEmbeddingOpenAI("text-embedding-3-small", 3),
	}
}

// stubEmbedder returns deterministic three-dimensional vectors and records
// every text it was asked to embed.
func stubEmbedder(seen *[]string) embedder.Func {
	return embedder.Func{
		Dims: 3,
		EmbedFunc: func(_ context.Context, texts []string) ([][]float64, error) {
			if seen != nil {
				*seen = append(*seen, texts...)
			}
			out := make([][]float64, len(texts))
			for i := range texts {
				out[i] = []float64{float64(len(texts[i])), 1, 2}
			}
			return out, nil
		},
	}
}
