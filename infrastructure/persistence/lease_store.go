package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/embedq/embedq/internal/database"
	"gorm.io/gorm"
)

// LeaseStore hands out expiring single-holder leases. It backs index-build
// mutual exclusion on databases without advisory locks.
type LeaseStore struct {
	db database.Database
}

// NewLeaseStore creates a new LeaseStore.
func NewLeaseStore(db database.Database) LeaseStore {
	return LeaseStore{db: db}
}

// Acquire takes the lease for resource if it is free or expired. Returns
// false when another live holder has it.
func (s LeaseStore) Acquire(ctx context.Context, resource, owner string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()

	acquired, err := database.WithTransactionResult(ctx, s.db, func(tx *gorm.DB) (bool, error) {
		var lease BuildLeaseModel
		err := tx.Where("resource = ?", resource).First(&lease).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			lease = BuildLeaseModel{Resource: resource, Owner: owner, ExpiresAt: now.Add(ttl)}
			return true, tx.Create(&lease).Error
		case err != nil:
			return false, err
		}

		if lease.Owner != owner && lease.ExpiresAt.After(now) {
			return false, nil
		}

		lease.Owner = owner
		lease.ExpiresAt = now.Add(ttl)
		return true, tx.Save(&lease).Error
	})
	if err != nil {
		return false, err
	}
	return acquired, nil
}

// Release frees the lease if owner still holds it.
func (s LeaseStore) Release(ctx context.Context, resource, owner string) error {
	return s.db.Session(ctx).
		Where("resource = ? AND owner = ?", resource, owner).
		Delete(&BuildLeaseModel{}).Error
}
