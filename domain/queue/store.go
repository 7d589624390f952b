package queue

import (
	"context"
	"math"
)

// Disposition is the outcome of processing a claimed item.
type Disposition int

const (
	// Done removes the item from the live queue.
	Done Disposition = iota
	// Failed increments the retry counter with backoff, or demotes the
	// item to the failed queue once the retry ceiling is reached.
	Failed
)

// Result reports the per-item outcome of a batch.
type Result struct {
	Item        Item
	Disposition Disposition
	// Stage labels the pipeline stage that failed. Empty for Done.
	Stage string
	// Err is the failure cause. Recorded for logs only.
	Err error
}

// ApproxOverflow is returned by Depth in approximate mode when the backlog
// exceeds the probe bound; the real depth is unknown but large.
const ApproxOverflow = int64(math.MaxInt64)

// Store is one vectorizer's durable work backlog. Claims are exclusive
// among concurrent workers for the duration of a batch.
type Store interface {
	// Provision creates the live and failed queue tables. Idempotent.
	Provision(ctx context.Context) error

	// Drop removes both queue tables. Idempotent.
	Drop(ctx context.Context) error

	// Enqueue appends pending items for the given keys. Duplicates are
	// tolerated.
	Enqueue(ctx context.Context, keys []Key) error

	// Backfill enqueues every current source row and returns how many
	// items were added.
	Backfill(ctx context.Context) (int64, error)

	// Backlog counts eligible items up to bound, for sizing batch fan-out.
	Backlog(ctx context.Context, bound int) (int64, error)

	// ProcessBatch claims up to limit eligible items, invokes fn, and
	// settles each item per its Result — all within one transaction. If fn
	// returns an error the claim is released untouched. Returns the number
	// of items claimed.
	ProcessBatch(ctx context.Context, limit int, fn func(ctx context.Context, items []Item) ([]Result, error)) (int, error)

	// Depth returns the number of pending items. In approximate mode the
	// count is bounded by a probe limit and saturates to ApproxOverflow.
	Depth(ctx context.Context, exact bool) (int64, error)

	// HasPending reports whether at least one item is queued, eligible or
	// not.
	HasPending(ctx context.Context) (bool, error)

	// FailedCount returns the number of items in the failed queue.
	FailedCount(ctx context.Context) (int64, error)

	// FailedItems lists the failed queue for operator inspection.
	FailedItems(ctx context.Context, limit int) ([]FailedItem, error)
}
