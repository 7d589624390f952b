package persistence

import (
	"github.com/embedq/embedq/internal/database"
)

// AutoMigrate runs GORM auto migration for the registry models. The
// per-vectorizer queue and destination tables are provisioned separately
// when a vectorizer is created.
func AutoMigrate(db database.Database) error {
	return db.GORM().AutoMigrate(
		&VectorizerModel{},
		&BuildLeaseModel{},
	)
}
