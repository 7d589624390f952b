package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embedq/embedq/domain/vectorizer"
)

func newScheduler(f *fixture) *Scheduler {
	return NewScheduler(f.store, f.worker, time.Hour, 2, testLogger())
}

func TestSchedulerPassRunsDueVectorizers(t *testing.T) {
	f := newFixture(t, stubEmbedder(nil))
	ctx := context.Background()

	exec(t, f.db, `INSERT INTO articles (id, title, body) VALUES (1, 'one', 'first body')`)

	cfg := bodyConfig()
	cfg.Scheduling = vectorizer.NewSchedulingInterval(time.Minute)
	v, err := f.service.Create(ctx, "articles-embeddings", "articles", cfg)
	require.NoError(t, err)

	s := newScheduler(f)
	s.pass(ctx)

	assert.Equal(t, int64(1), count(t, f.db, `SELECT COUNT(*) FROM articles_embedding_store`))

	// The deadline is tracked so the next poll inside the interval skips it.
	deadline, tracked := s.nextDue[v.ID()]
	require.True(t, tracked)
	assert.True(t, deadline.After(time.Now()))

	exec(t, f.db, `UPDATE articles SET body = 'changed' WHERE id = 1`)
	s.pass(ctx)
	depth, err := f.service.QueueDepth(ctx, "articles-embeddings", true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)

	// Once the deadline lapses the backlog drains again.
	s.nextDue[v.ID()] = time.Now().Add(-time.Second)
	s.pass(ctx)
	depth, err = f.service.QueueDepth(ctx, "articles-embeddings", true)
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestSchedulerSkipsManualVectorizers(t *testing.T) {
	f := newFixture(t, stubEmbedder(nil))
	ctx := context.Background()

	exec(t, f.db, `INSERT INTO articles (id, title, body) VALUES (1, 'one', 'first body')`)

	cfg := bodyConfig()
	cfg.Scheduling = vectorizer.NewSchedulingNone()
	v, err := f.service.Create(ctx, "manual", "articles", cfg)
	require.NoError(t, err)

	s := newScheduler(f)
	s.pass(ctx)

	// Change capture queued the backfill but nothing drains it.
	depth, err := f.service.QueueDepth(ctx, "manual", true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)
	_, tracked := s.nextDue[v.ID()]
	assert.False(t, tracked)
}

func TestSchedulerSkipsDisabledVectorizers(t *testing.T) {
	f := newFixture(t, stubEmbedder(nil))
	ctx := context.Background()

	exec(t, f.db, `INSERT INTO articles (id, title, body) VALUES (1, 'one', 'first body')`)

	cfg := bodyConfig()
	cfg.Scheduling = vectorizer.NewSchedulingInterval(time.Minute)
	_, err := f.service.Create(ctx, "articles-embeddings", "articles", cfg)
	require.NoError(t, err)
	require.NoError(t, f.service.Disable(ctx, "articles-embeddings"))

	s := newScheduler(f)
	s.pass(ctx)

	depth, err := f.service.QueueDepth(ctx, "articles-embeddings", true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)
}

func TestSchedulerForgetsRemovedVectorizers(t *testing.T) {
	f := newFixture(t, stubEmbedder(nil))
	ctx := context.Background()

	cfg := bodyConfig()
	cfg.Scheduling = vectorizer.NewSchedulingInterval(time.Minute)
	v, err := f.service.Create(ctx, "articles-embeddings", "articles", cfg)
	require.NoError(t, err)

	s := newScheduler(f)
	s.pass(ctx)
	_, tracked := s.nextDue[v.ID()]
	require.True(t, tracked)

	require.NoError(t, f.service.Disable(ctx, "articles-embeddings"))
	s.pass(ctx)
	_, tracked = s.nextDue[v.ID()]
	assert.False(t, tracked)
}

func TestSchedulerStartStop(t *testing.T) {
	f := newFixture(t, stubEmbedder(nil))

	s := newScheduler(f)
	s.Start(context.Background())
	s.Stop()

	// Stop is safe to call again.
	s.Stop()
}
