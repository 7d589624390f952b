// Package embedq provides a library for keeping database tables and their
// vector embeddings in sync.
//
// A vectorizer binds one source table to a declarative embedding pipeline:
// change-capture triggers queue modified rows, a background worker drains
// the queue through chunking, formatting and embedding, and an index
// manager builds the ANN index once the destination is large enough.
//
// Basic usage:
//
//	client, err := embedq.New(ctx,
//	    embedq.WithSQLite("embedq.db"),
//	    embedq.WithOpenAI(os.Getenv("OPENAI_API_KEY")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Create a vectorizer for the articles table
//	v, err := client.Vectorizers().Create(ctx, "articles", "articles", vectorizer.Config{
//	    Loading: vectorizer.NewLoadingColumn("body"),
//	    Embedding: vectorizer.NewEmbeddingOpenAI("text-embedding-3-small", 1536),
//	})
//
//	// Start the periodic driver
//	client.Start(ctx)
package embedq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/embedq/embedq/application/service"
	"github.com/embedq/embedq/infrastructure/embedder"
	"github.com/embedq/embedq/infrastructure/index"
	"github.com/embedq/embedq/infrastructure/persistence"
	"github.com/embedq/embedq/infrastructure/provision"
	"github.com/embedq/embedq/internal/database"
	"github.com/embedq/embedq/internal/log"
)

// Client is the main entry point for the embedq library.
type Client struct {
	db database.Database

	vectorizerStore persistence.VectorizerStore

	vectorizers *service.VectorizerService
	processor   *service.Processor
	worker      *service.Worker
	scheduler   *service.Scheduler

	logger  *slog.Logger
	started atomic.Bool
	closed  atomic.Bool
	mu      sync.Mutex
}

// New creates a new Client with the given options. The periodic driver is
// not started until Start is called.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := newClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.dbURL == "" {
		return nil, ErrNoDatabase
	}

	logger := cfg.logger
	if logger == nil {
		logger = log.NewLogger(log.FormatPretty, "INFO")
	}

	db, err := database.NewDatabase(ctx, cfg.dbURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := persistence.AutoMigrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	vectorizerStore := persistence.NewVectorizerStore(db)
	provisioner := provision.NewProvisioner(db, cfg.grantRead, cfg.grantWrite)
	leases := persistence.NewLeaseStore(db)
	indexManager := index.NewManager(db, leases, logger)

	embedders := embedder.NewFactory(cfg.apiKey, cfg.baseURL)
	processor := service.NewProcessor(db, embedders, cfg.embedder, logger)
	worker := service.NewWorker(db, processor, indexManager, logger)
	vectorizers := service.NewVectorizerService(db, vectorizerStore, provisioner, cfg.defaults, logger)
	scheduler := service.NewScheduler(vectorizerStore, worker, cfg.pollInterval, cfg.tickConcurrency, logger)

	return &Client{
		db:              db,
		vectorizerStore: vectorizerStore,
		vectorizers:     vectorizers,
		processor:       processor,
		worker:          worker,
		scheduler:       scheduler,
		logger:          logger,
	}, nil
}

// Vectorizers returns the vectorizer lifecycle service.
func (c *Client) Vectorizers() *service.VectorizerService {
	return c.vectorizers
}

// Worker returns the tick worker for embedding in other drivers.
func (c *Client) Worker() *service.Worker {
	return c.worker
}

// Logger returns the client logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// Database returns the underlying database handle.
func (c *Client) Database() database.Database {
	return c.db
}

// Start launches the periodic driver. Safe to call once; subsequent calls
// are no-ops.
func (c *Client) Start(ctx context.Context) error {
	if c.closed.Load() {
		return service.ErrClientClosed
	}
	if !c.started.CompareAndSwap(false, true) {
		return nil
	}
	c.scheduler.Start(ctx)
	return nil
}

// RunNow executes one immediate tick for the named vectorizer, regardless
// of its schedule or enabled flag. Returns the number of items processed.
func (c *Client) RunNow(ctx context.Context, name string) (int, error) {
	if c.closed.Load() {
		return 0, service.ErrClientClosed
	}
	v, err := c.vectorizers.Get(ctx, name)
	if err != nil {
		return 0, err
	}
	return c.worker.Tick(ctx, v)
}

// Close stops the periodic driver and releases the database.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.started.Load() {
		c.scheduler.Stop()
	}
	return c.db.Close()
}
