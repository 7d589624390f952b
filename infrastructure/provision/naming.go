// Package provision creates the database objects a vectorizer owns: queue
// tables, the destination table or column, the read view, and grants.
package provision

import "fmt"

// Derived object names. Queue and trigger names key off the registry id so
// they survive source-table renames; destination names key off the source
// table so readers find them.

// QueueTableName returns the live queue table name for a vectorizer id.
func QueueTableName(id int64) string {
	return fmt.Sprintf("vectorizer_q_%d", id)
}

// FailedQueueTableName returns the failed queue table name for a
// vectorizer id.
func FailedQueueTableName(id int64) string {
	return fmt.Sprintf("vectorizer_q_failed_%d", id)
}

// TriggerName returns the change-capture trigger name for a vectorizer id.
func TriggerName(id int64) string {
	return fmt.Sprintf("vectorizer_trg_%d", id)
}

// DefaultTargetTable returns the destination table name for a source table.
func DefaultTargetTable(sourceTable string) string {
	return sourceTable + "_embedding_store"
}

// DefaultViewName returns the read view name for a source table.
func DefaultViewName(sourceTable string) string {
	return sourceTable + "_embedding"
}
