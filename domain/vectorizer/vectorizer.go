// Package vectorizer provides the pipeline configuration model and the
// vectorizer registry entity. A vectorizer binds one source table to one
// embedding pipeline and destination; its configuration is a set of tagged
// per-stage documents validated as a whole before any provisioning runs.
package vectorizer

import (
	"strings"
	"time"
)

// PKColumn describes one primary-key column of the source table, in key
// order.
type PKColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// SourceColumn describes a column of the source table.
type SourceColumn struct {
	Name         string
	Type         string
	IsPrimaryKey bool
}

// SourceTable describes the source table as observed at creation time.
// Validation consults it to check referenced columns exist and have a
// compatible representation.
type SourceTable struct {
	Name    string
	Columns []SourceColumn
}

// Column returns the named column, if present.
func (t SourceTable) Column(name string) (SourceColumn, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return SourceColumn{}, false
}

// PrimaryKey returns the primary-key columns in declaration order.
func (t SourceTable) PrimaryKey() []PKColumn {
	var pk []PKColumn
	for _, c := range t.Columns {
		if c.IsPrimaryKey {
			pk = append(pk, PKColumn{Name: c.Name, Type: c.Type})
		}
	}
	return pk
}

// textTypes are SQL type prefixes accepted where a text-like column is
// required.
var textTypes = []string{
	"text", "varchar", "character varying", "character", "char", "json", "jsonb", "uuid", "clob",
}

// binaryTypes are SQL type prefixes accepted where a binary column is
// required.
var binaryTypes = []string{"bytea", "blob"}

// IsTextLike reports whether the column holds text-like content.
func (c SourceColumn) IsTextLike() bool {
	return matchesType(c.Type, textTypes)
}

// IsBinary reports whether the column holds binary content.
func (c SourceColumn) IsBinary() bool {
	return matchesType(c.Type, binaryTypes)
}

func matchesType(sqlType string, prefixes []string) bool {
	t := strings.ToLower(strings.TrimSpace(sqlType))
	for _, p := range prefixes {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	return false
}

// Vectorizer is a configured pipeline instance: one source table bound to
// one embedding pipeline and destination. Instances are immutable; the
// registry store returns fresh copies.
type Vectorizer struct {
	id               int64
	name             string
	sourceTable      string
	sourcePK         []PKColumn
	triggerName      string
	queueTable       string
	failedQueueTable string
	config           Config
	enabled          bool
	createdAt        time.Time
	updatedAt        time.Time
}

// NewVectorizer creates a Vectorizer prior to registration (no id yet).
func NewVectorizer(name, sourceTable string, sourcePK []PKColumn, triggerName, queueTable, failedQueueTable string, config Config) Vectorizer {
	pk := make([]PKColumn, len(sourcePK))
	copy(pk, sourcePK)
	return Vectorizer{
		name:             name,
		sourceTable:      sourceTable,
		sourcePK:         pk,
		triggerName:      triggerName,
		queueTable:       queueTable,
		failedQueueTable: failedQueueTable,
		config:           config,
		enabled:          true,
	}
}

// NewVectorizerWithID creates a Vectorizer with all fields (used by the
// registry store).
func NewVectorizerWithID(
	id int64,
	name, sourceTable string,
	sourcePK []PKColumn,
	triggerName, queueTable, failedQueueTable string,
	config Config,
	enabled bool,
	createdAt, updatedAt time.Time,
) Vectorizer {
	v := NewVectorizer(name, sourceTable, sourcePK, triggerName, queueTable, failedQueueTable, config)
	v.id = id
	v.enabled = enabled
	v.createdAt = createdAt
	v.updatedAt = updatedAt
	return v
}

// ID returns the vectorizer id.
func (v Vectorizer) ID() int64 { return v.id }

// Name returns the unique vectorizer name.
func (v Vectorizer) Name() string { return v.name }

// SourceTable returns the source table name.
func (v Vectorizer) SourceTable() string { return v.sourceTable }

// SourcePK returns the ordered primary-key column descriptors.
func (v Vectorizer) SourcePK() []PKColumn {
	pk := make([]PKColumn, len(v.sourcePK))
	copy(pk, v.sourcePK)
	return pk
}

// TriggerName returns the change-capture trigger identity.
func (v Vectorizer) TriggerName() string { return v.triggerName }

// QueueTable returns the live queue table name.
func (v Vectorizer) QueueTable() string { return v.queueTable }

// FailedQueueTable returns the failed-queue table name.
func (v Vectorizer) FailedQueueTable() string { return v.failedQueueTable }

// Config returns the resolved pipeline configuration.
func (v Vectorizer) Config() Config { return v.config }

// Enabled reports whether the periodic driver is active.
func (v Vectorizer) Enabled() bool { return v.enabled }

// CreatedAt returns when the vectorizer was registered.
func (v Vectorizer) CreatedAt() time.Time { return v.createdAt }

// UpdatedAt returns when the vectorizer was last updated.
func (v Vectorizer) UpdatedAt() time.Time { return v.updatedAt }

// WithID returns a copy with the given id.
func (v Vectorizer) WithID(id int64) Vectorizer {
	v.id = id
	return v
}

// WithEnabled returns a copy with the enabled flag set.
func (v Vectorizer) WithEnabled(enabled bool) Vectorizer {
	v.enabled = enabled
	return v
}

// WithTimestamps returns a copy with the given timestamps.
func (v Vectorizer) WithTimestamps(createdAt, updatedAt time.Time) Vectorizer {
	v.createdAt = createdAt
	v.updatedAt = updatedAt
	return v
}
