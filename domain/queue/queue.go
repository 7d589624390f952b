// Package queue provides the domain types for the durable embedding work
// backlog: one live queue and one terminal failed-queue per vectorizer.
package queue

import (
	"fmt"
	"strings"
	"time"
)

// Key is one source-row primary-key tuple, ordered to match the
// vectorizer's primary-key column descriptors.
type Key struct {
	values []any
}

// NewKey creates a Key from ordered primary-key values.
func NewKey(values ...any) Key {
	cp := make([]any, len(values))
	copy(cp, values)
	return Key{values: cp}
}

// Values returns a copy of the ordered primary-key values.
func (k Key) Values() []any {
	cp := make([]any, len(k.values))
	copy(cp, k.values)
	return cp
}

// Len returns the number of key columns.
func (k Key) Len() int { return len(k.values) }

// String returns a readable tuple representation for logs.
func (k Key) String() string {
	parts := make([]string, len(k.values))
	for i, v := range k.values {
		parts[i] = fmt.Sprintf("%v", v)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// Item is one outstanding unit of work: a primary-key tuple awaiting
// (re-)embedding. Duplicate items for the same tuple are tolerated; the
// worker is idempotent.
type Item struct {
	key        Key
	queuedAt   time.Time
	retries    int
	retryAfter time.Time
}

// NewItem creates a pending Item for a key.
func NewItem(key Key, queuedAt time.Time) Item {
	return Item{key: key, queuedAt: queuedAt}
}

// NewItemWithRetries creates an Item with retry bookkeeping (used by the
// queue store).
func NewItemWithRetries(key Key, queuedAt time.Time, retries int, retryAfter time.Time) Item {
	return Item{key: key, queuedAt: queuedAt, retries: retries, retryAfter: retryAfter}
}

// Key returns the primary-key tuple.
func (i Item) Key() Key { return i.key }

// QueuedAt returns when the item was enqueued.
func (i Item) QueuedAt() time.Time { return i.queuedAt }

// Retries returns how many times processing has failed so far.
func (i Item) Retries() int { return i.retries }

// RetryAfter returns the earliest next attempt time; zero means eligible
// immediately.
func (i Item) RetryAfter() time.Time { return i.retryAfter }

// FailedItem is the terminal record of an item that exhausted its retries.
// Nothing re-queues it automatically; it exists for operator inspection.
type FailedItem struct {
	key       Key
	createdAt time.Time
	stage     string
}

// NewFailedItem creates a FailedItem recording the stage that failed.
func NewFailedItem(key Key, createdAt time.Time, stage string) FailedItem {
	return FailedItem{key: key, createdAt: createdAt, stage: stage}
}

// Key returns the primary-key tuple.
func (f FailedItem) Key() Key { return f.key }

// CreatedAt returns when the item was demoted.
func (f FailedItem) CreatedAt() time.Time { return f.createdAt }

// Stage returns the pipeline stage label at which processing failed.
func (f FailedItem) Stage() string { return f.stage }
