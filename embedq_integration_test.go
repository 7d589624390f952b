package embedq_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embedq/embedq"
	"github.com/embedq/embedq/application/service"
	"github.com/embedq/embedq/domain/vectorizer"
	"github.com/embedq/embedq/infrastructure/embedder"
)

const testPollPeriod = 50 * time.Millisecond

func newTestClient(t *testing.T, opts ...embedq.Option) *embedq.Client {
	t.Helper()

	base := []embedq.Option{
		embedq.WithSQLite(filepath.Join(t.TempDir(), "test.db")),
		embedq.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		embedq.WithEmbedder(embedder.Func{
			Dims: 3,
			EmbedFunc: func(_ context.Context, texts []string) ([][]float64, error) {
				out := make([][]float64, len(texts))
				for i := range texts {
					out[i] = []float64{1, 2, 3}
				}
				return out, nil
			},
		}),
		embedq.WithPollInterval(testPollPeriod),
	}

	client, err := embedq.New(context.Background(), append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func seedArticles(t *testing.T, client *embedq.Client, rows int) {
	t.Helper()
	ctx := context.Background()
	session := client.Database().Session(ctx)
	require.NoError(t, session.Exec(`CREATE TABLE articles (id INTEGER PRIMARY KEY, body TEXT)`).Error)
	for i := 1; i <= rows; i++ {
		require.NoError(t, session.Exec(`INSERT INTO articles (id, body) VALUES (?, ?)`, i, "body text").Error)
	}
}

func viewRows(t *testing.T, client *embedq.Client) int64 {
	t.Helper()
	var n int64
	err := client.Database().Session(context.Background()).
		Raw(`SELECT COUNT(*) FROM articles_embedding`).Scan(&n).Error
	require.NoError(t, err)
	return n
}

func TestIntegration_RequiresDatabase(t *testing.T) {
	_, err := embedq.New(context.Background())
	assert.ErrorIs(t, err, embedq.ErrNoDatabase)
}

func TestIntegration_ManualRun(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	seedArticles(t, client, 2)

	_, err := client.Vectorizers().Create(ctx, "articles-embeddings", "articles", vectorizer.Config{
		Loading:   vectorizer.NewLoadingColumn("body"),
		Embedding: vectorizer.NewEmbeddingOpenAI("text-embedding-3-small", 3),
	})
	require.NoError(t, err)

	processed, err := client.RunNow(ctx, "articles-embeddings")
	require.NoError(t, err)
	assert.Equal(t, 2, processed)
	assert.Equal(t, int64(2), viewRows(t, client))
}

func TestIntegration_ScheduledWorkflow(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	seedArticles(t, client, 3)

	_, err := client.Vectorizers().Create(ctx, "articles-embeddings", "articles", vectorizer.Config{
		Loading:    vectorizer.NewLoadingColumn("body"),
		Embedding:  vectorizer.NewEmbeddingOpenAI("text-embedding-3-small", 3),
		Scheduling: vectorizer.NewSchedulingInterval(time.Second),
	})
	require.NoError(t, err)

	require.NoError(t, client.Start(ctx))
	// Starting twice is a no-op.
	require.NoError(t, client.Start(ctx))

	require.Eventually(t, func() bool {
		return viewRows(t, client) == 3
	}, 5*time.Second, testPollPeriod, "scheduler should drain the backfill")
}

func TestIntegration_DefaultsResolveSentinels(t *testing.T) {
	client := newTestClient(t, embedq.WithDefaults(vectorizer.Defaults{
		Scheduling: vectorizer.NewSchedulingInterval(time.Minute),
	}))
	ctx := context.Background()
	seedArticles(t, client, 1)

	v, err := client.Vectorizers().Create(ctx, "articles-embeddings", "articles", vectorizer.Config{
		Loading:   vectorizer.NewLoadingColumn("body"),
		Embedding: vectorizer.NewEmbeddingOpenAI("text-embedding-3-small", 3),
	})
	require.NoError(t, err)

	interval, ok := v.Config().ScheduleInterval()
	require.True(t, ok)
	assert.Equal(t, time.Minute, interval)
}

func TestIntegration_RunNowUnknownVectorizer(t *testing.T) {
	client := newTestClient(t)

	_, err := client.RunNow(context.Background(), "missing")
	assert.Error(t, err)
}

func TestIntegration_Close(t *testing.T) {
	client := newTestClient(t)
	require.NoError(t, client.Close())

	// Close is idempotent; the client refuses further work.
	require.NoError(t, client.Close())
	assert.ErrorIs(t, client.Start(context.Background()), service.ErrClientClosed)
	_, err := client.RunNow(context.Background(), "anything")
	assert.ErrorIs(t, err, service.ErrClientClosed)
}
