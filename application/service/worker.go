package service

import (
	"context"
	"log/slog"

	"github.com/embedq/embedq/domain/queue"
	"github.com/embedq/embedq/domain/vectorizer"
	"github.com/embedq/embedq/infrastructure/index"
	"github.com/embedq/embedq/infrastructure/persistence"
	"github.com/embedq/embedq/internal/database"
)

const (
	// backlogProbeBound caps the eligible-item count used to size a tick's
	// batch fan-out.
	backlogProbeBound = 500
	// maxBatchesPerTick bounds how many batches one tick runs for one
	// vectorizer, so a deep backlog cannot starve the others.
	maxBatchesPerTick = 10
)

// Worker executes one vectorizer's periodic work: index upkeep plus queue
// draining. Each step runs in its own transaction; a failure in one step
// never rolls back another.
type Worker struct {
	db        database.Database
	processor *Processor
	index     index.Manager
	logger    *slog.Logger
}

// NewWorker creates a new Worker.
func NewWorker(db database.Database, processor *Processor, indexManager index.Manager, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{db: db, processor: processor, index: indexManager, logger: logger}
}

// Tick runs one full pass for a vectorizer. Returns the number of items
// processed.
func (w *Worker) Tick(ctx context.Context, v vectorizer.Vectorizer) (int, error) {
	q, err := persistence.NewQueueStore(w.db, v)
	if err != nil {
		return 0, err
	}
	dest, err := persistence.NewDestinationStore(w.db, v)
	if err != nil {
		return 0, err
	}

	// Index upkeep is advisory: a failed build attempt must not block
	// queue draining.
	if err := w.index.EnsureIndex(ctx, v, q, dest); err != nil {
		w.logger.Warn("index upkeep failed", "vectorizer", v.ID(), "error", err)
	}

	pending, err := q.HasPending(ctx)
	if err != nil {
		return 0, err
	}
	if !pending {
		return 0, nil
	}

	batchSize := batchSizeFor(v)
	batches := w.planBatches(ctx, q, batchSize)

	processed := 0
	for i := 0; i < batches; i++ {
		n, err := w.processor.ProcessBatch(ctx, v, q, batchSize)
		processed += n
		if err != nil {
			return processed, err
		}
		if n == 0 {
			break
		}
	}

	if processed > 0 {
		w.logger.Debug("tick processed items", "vectorizer", v.ID(), "count", processed)
	}
	return processed, nil
}

// planBatches sizes the tick's fan-out from a bounded backlog probe.
func (w *Worker) planBatches(ctx context.Context, q queue.Store, batchSize int) int {
	backlog, err := q.Backlog(ctx, backlogProbeBound)
	if err != nil {
		w.logger.Warn("backlog probe failed", "error", err)
		return 1
	}
	if backlog == 0 {
		return 0
	}

	batches := int((backlog + int64(batchSize) - 1) / int64(batchSize))
	if batches > maxBatchesPerTick {
		batches = maxBatchesPerTick
	}
	return batches
}

func batchSizeFor(v vectorizer.Vectorizer) int {
	if p := v.Config().Processing; p != nil {
		return p.QueueBatchSize()
	}
	return vectorizer.DefaultProcessingBatchSize
}
