package database

import (
	"context"

	"gorm.io/gorm"
)

type txContextKey struct{}

// ContextWithTx returns a context carrying an open transaction. Sessions
// derived from it via Database.Session join the transaction.
func ContextWithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFromContext extracts the transaction carried by the context, if any.
func TxFromContext(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txContextKey{}).(*gorm.DB)
	return tx, ok
}
