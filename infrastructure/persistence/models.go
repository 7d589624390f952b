// Package persistence provides database storage implementations.
package persistence

import "time"

// VectorizerModel is the registry row for a configured pipeline.
type VectorizerModel struct {
	ID               int64     `gorm:"primaryKey;autoIncrement"`
	Name             string    `gorm:"uniqueIndex:idx_vectorizers_name;not null"`
	SourceTable      string    `gorm:"not null"`
	SourcePK         string    `gorm:"type:text;not null"` // JSON-encoded ordered PK descriptors
	TriggerName      string    `gorm:"not null"`
	QueueTable       string    `gorm:"not null"`
	FailedQueueTable string    `gorm:"not null"`
	Config           string    `gorm:"type:text;not null"` // canonical pipeline config JSON
	Enabled          bool      `gorm:"not null"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the registry table name.
func (VectorizerModel) TableName() string { return "vectorizers" }

// BuildLeaseModel serializes vector-index builds on backends without
// advisory locks. One row per resource; holders refresh ExpiresAt, stale
// leases are reclaimed.
type BuildLeaseModel struct {
	Resource  string    `gorm:"primaryKey"`
	Owner     string    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null"`
}

// TableName returns the lease table name.
func (BuildLeaseModel) TableName() string { return "index_build_leases" }
