package vectorizer

import (
	"context"

	"github.com/embedq/embedq/domain/store"
)

// Store is the vectorizer registry. Names are unique; Save on a new
// vectorizer with a taken name fails with ErrDuplicate.
type Store interface {
	Save(ctx context.Context, v Vectorizer) (Vectorizer, error)
	Get(ctx context.Context, id int64) (Vectorizer, error)
	GetByName(ctx context.Context, name string) (Vectorizer, error)
	Find(ctx context.Context, opts ...store.Option) ([]Vectorizer, error)
	Delete(ctx context.Context, id int64) error
}
