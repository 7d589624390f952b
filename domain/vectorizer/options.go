package vectorizer

import "github.com/embedq/embedq/domain/store"

// WithSourceTable filters vectorizers by the "source_table" column.
func WithSourceTable(table string) store.Option {
	return store.WithCondition("source_table", table)
}
