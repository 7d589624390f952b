package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/embedq/embedq/domain/queue"
	"github.com/embedq/embedq/domain/vectorizer"
	"github.com/embedq/embedq/internal/database"
)

// SourceRow is one source-table row keyed for processing. Values holds
// every column by name; text columns are normalized to string.
type SourceRow struct {
	Key    queue.Key
	Values map[string]any
}

// Column returns the named column value as text.
func (r SourceRow) Column(name string) (string, bool) {
	v, ok := r.Values[name]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	default:
		return fmt.Sprintf("%v", t), true
	}
}

// SourceReader loads source rows for claimed queue items.
type SourceReader struct {
	db          database.Database
	sourceTable string
	pk          []vectorizer.PKColumn
}

// NewSourceReader creates a reader over the vectorizer's source table.
func NewSourceReader(db database.Database, v vectorizer.Vectorizer) (SourceReader, error) {
	if err := database.ValidateIdent(v.SourceTable()); err != nil {
		return SourceReader{}, err
	}
	for _, c := range v.SourcePK() {
		if err := database.ValidateIdent(c.Name); err != nil {
			return SourceReader{}, err
		}
	}
	return SourceReader{db: db, sourceTable: v.SourceTable(), pk: v.SourcePK()}, nil
}

// Load returns the source row for a key, or found=false when the row has
// been deleted since the item was queued.
func (r SourceReader) Load(ctx context.Context, key queue.Key) (SourceRow, bool, error) {
	preds := make([]string, len(r.pk))
	for i, c := range r.pk {
		preds[i] = database.QuoteIdent(c.Name) + " = ?"
	}

	sql := fmt.Sprintf(
		`SELECT * FROM %s WHERE %s LIMIT 1`,
		database.QuoteIdent(r.sourceTable), strings.Join(preds, " AND "),
	)

	rows, err := r.db.Session(ctx).Raw(sql, key.Values()...).Rows()
	if err != nil {
		return SourceRow{}, false, fmt.Errorf("load source row %s: %w", key, err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return SourceRow{}, false, rows.Err()
	}

	cols, err := rows.Columns()
	if err != nil {
		return SourceRow{}, false, err
	}

	raw := make([]any, len(cols))
	scan := make([]any, len(cols))
	for i := range raw {
		scan[i] = &raw[i]
	}
	if err := rows.Scan(scan...); err != nil {
		return SourceRow{}, false, fmt.Errorf("scan source row %s: %w", key, err)
	}

	values := make(map[string]any, len(cols))
	for i, name := range cols {
		if b, ok := raw[i].([]byte); ok {
			values[name] = string(b)
			continue
		}
		values[name] = raw[i]
	}

	return SourceRow{Key: key, Values: values}, true, nil
}
