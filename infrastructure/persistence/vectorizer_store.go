package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/embedq/embedq/domain/store"
	"github.com/embedq/embedq/domain/vectorizer"
	"github.com/embedq/embedq/internal/database"
	"gorm.io/gorm"
)

// VectorizerStore implements vectorizer.Store using GORM.
type VectorizerStore struct {
	db     database.Database
	mapper VectorizerMapper
}

// NewVectorizerStore creates a new VectorizerStore.
func NewVectorizerStore(db database.Database) VectorizerStore {
	return VectorizerStore{
		db:     db,
		mapper: VectorizerMapper{},
	}
}

// Save persists a vectorizer, inserting when it has no id yet. A name
// collision surfaces as vectorizer.ErrDuplicate.
func (s VectorizerStore) Save(ctx context.Context, v vectorizer.Vectorizer) (vectorizer.Vectorizer, error) {
	model, err := s.mapper.ToModel(v)
	if err != nil {
		return vectorizer.Vectorizer{}, err
	}

	if err := s.db.Session(ctx).Save(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return vectorizer.Vectorizer{}, fmt.Errorf("%w: vectorizer %q", vectorizer.ErrDuplicate, v.Name())
		}
		return vectorizer.Vectorizer{}, err
	}

	return s.mapper.ToDomain(model)
}

// Get returns a vectorizer by id.
func (s VectorizerStore) Get(ctx context.Context, id int64) (vectorizer.Vectorizer, error) {
	var model VectorizerModel
	err := s.db.Session(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return vectorizer.Vectorizer{}, fmt.Errorf("%w: vectorizer %d", database.ErrNotFound, id)
		}
		return vectorizer.Vectorizer{}, err
	}
	return s.mapper.ToDomain(model)
}

// GetByName returns a vectorizer by its unique name.
func (s VectorizerStore) GetByName(ctx context.Context, name string) (vectorizer.Vectorizer, error) {
	var model VectorizerModel
	err := s.db.Session(ctx).Where("name = ?", name).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return vectorizer.Vectorizer{}, fmt.Errorf("%w: vectorizer %q", database.ErrNotFound, name)
		}
		return vectorizer.Vectorizer{}, err
	}
	return s.mapper.ToDomain(model)
}

// Find returns vectorizers matching the given query options.
func (s VectorizerStore) Find(ctx context.Context, opts ...store.Option) ([]vectorizer.Vectorizer, error) {
	query := s.db.Session(ctx).Model(&VectorizerModel{})
	query = database.ApplyOptions(query, opts...)

	var models []VectorizerModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	result := make([]vectorizer.Vectorizer, 0, len(models))
	for _, m := range models {
		v, err := s.mapper.ToDomain(m)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}

// Delete removes a vectorizer registry row.
func (s VectorizerStore) Delete(ctx context.Context, id int64) error {
	return s.db.Session(ctx).Where("id = ?", id).Delete(&VectorizerModel{}).Error
}

// isUniqueViolation reports whether the error is a unique-constraint
// violation on either backend.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique failed")
}

var _ vectorizer.Store = (*VectorizerStore)(nil)
