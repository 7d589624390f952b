package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/embedq/embedq/domain/queue"
	"github.com/embedq/embedq/domain/vectorizer"
	"github.com/embedq/embedq/internal/database"
	"github.com/google/uuid"
)

// EmbeddingRow is one chunk-level embedding destined for storage.
type EmbeddingRow struct {
	Seq       int
	Chunk     string
	Embedding []float64
}

// DestinationStore writes finished embeddings to the vectorizer's
// destination: a dedicated side table in table mode, a column on the source
// row in column mode. Replace is idempotent per source row.
type DestinationStore struct {
	db          database.Database
	sourceTable string
	targetTable string
	column      string
	pk          []vectorizer.PKColumn
	columnMode  bool
}

// NewDestinationStore creates the destination store for a vectorizer.
func NewDestinationStore(db database.Database, v vectorizer.Vectorizer) (DestinationStore, error) {
	s := DestinationStore{
		db:          db,
		sourceTable: v.SourceTable(),
		pk:          v.SourcePK(),
	}

	cfg := v.Config()
	if dest, ok := cfg.ColumnDestination(); ok {
		s.columnMode = true
		s.column = dest.EmbeddingColumn
	} else if dest, ok := cfg.TableDestination(); ok {
		s.targetTable = dest.TargetTable
	} else {
		return DestinationStore{}, fmt.Errorf("%w: vectorizer %d has no destination", vectorizer.ErrInvalidConfig, v.ID())
	}

	names := []string{s.sourceTable}
	if s.targetTable != "" {
		names = append(names, s.targetTable)
	}
	if s.column != "" {
		names = append(names, s.column)
	}
	for _, c := range s.pk {
		names = append(names, c.Name)
	}
	for _, name := range names {
		if err := database.ValidateIdent(name); err != nil {
			return DestinationStore{}, fmt.Errorf("destination store for vectorizer %d: %w", v.ID(), err)
		}
	}
	return s, nil
}

// Replace swaps the stored embeddings for one source row. In table mode it
// deletes the row's chunks and inserts the new set; in column mode it
// updates the embedding column in place.
func (s DestinationStore) Replace(ctx context.Context, key queue.Key, rows []EmbeddingRow) error {
	if s.columnMode {
		return s.replaceColumn(ctx, key, rows)
	}
	return s.replaceRows(ctx, key, rows)
}

func (s DestinationStore) replaceRows(ctx context.Context, key queue.Key, rows []EmbeddingRow) error {
	session := s.db.Session(ctx)

	del := fmt.Sprintf(`DELETE FROM %s WHERE %s`, database.QuoteIdent(s.targetTable), s.pkWhere())
	if err := session.Exec(del, key.Values()...).Error; err != nil {
		return fmt.Errorf("clear destination rows for %s: %w", key, err)
	}
	if len(rows) == 0 {
		return nil
	}

	now := time.Now().UTC()
	cols := len(s.pk) + 5
	placeholders := make([]string, 0, len(rows))
	args := make([]any, 0, len(rows)*cols)
	rowHoles := "(" + strings.TrimSuffix(strings.Repeat("?, ", cols), ", ") + ")"

	for _, row := range rows {
		placeholders = append(placeholders, rowHoles)
		args = append(args, uuid.New().String())
		args = append(args, key.Values()...)
		args = append(args, row.Seq, row.Chunk, database.NewVector(row.Embedding), now)
	}

	ins := fmt.Sprintf(
		`INSERT INTO %s (embedding_uuid, %s, chunk_seq, chunk, embedding, generated_at) VALUES %s`,
		database.QuoteIdent(s.targetTable), s.pkColumnList(), strings.Join(placeholders, ", "),
	)
	if err := session.Exec(ins, args...).Error; err != nil {
		return fmt.Errorf("insert destination rows for %s: %w", key, err)
	}
	return nil
}

func (s DestinationStore) replaceColumn(ctx context.Context, key queue.Key, rows []EmbeddingRow) error {
	var value any
	if len(rows) > 0 {
		// Column mode forbids chunking, so at most one row arrives.
		value = database.NewVector(rows[0].Embedding)
	}

	sql := fmt.Sprintf(
		`UPDATE %s SET %s = ? WHERE %s`,
		database.QuoteIdent(s.sourceTable), database.QuoteIdent(s.column), s.pkWhere(),
	)
	args := append([]any{value}, key.Values()...)
	if err := s.db.Session(ctx).Exec(sql, args...).Error; err != nil {
		return fmt.Errorf("update embedding column for %s: %w", key, err)
	}
	return nil
}

// Delete removes the stored embeddings for one source row.
func (s DestinationStore) Delete(ctx context.Context, key queue.Key) error {
	return s.Replace(ctx, key, nil)
}

// EmbeddedRowCount returns the number of embedded rows, counting at most
// bound. The index manager uses it for its min-rows gate without a full
// scan.
func (s DestinationStore) EmbeddedRowCount(ctx context.Context, bound int) (int64, error) {
	table := s.targetTable
	predicate := ""
	if s.columnMode {
		table = s.sourceTable
		predicate = fmt.Sprintf(" WHERE %s IS NOT NULL", database.QuoteIdent(s.column))
	}

	var count int64
	sql := fmt.Sprintf(
		`SELECT COUNT(*) FROM (SELECT 1 FROM %s%s LIMIT %d) probe`,
		database.QuoteIdent(table), predicate, bound,
	)
	if err := s.db.Session(ctx).Raw(sql).Scan(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// IndexTable returns the table the vector index attaches to.
func (s DestinationStore) IndexTable() string {
	if s.columnMode {
		return s.sourceTable
	}
	return s.targetTable
}

// IndexColumn returns the column the vector index covers.
func (s DestinationStore) IndexColumn() string {
	if s.columnMode {
		return s.column
	}
	return "embedding"
}

func (s DestinationStore) pkColumnList() string {
	parts := make([]string, len(s.pk))
	for i, c := range s.pk {
		parts[i] = database.QuoteIdent(c.Name)
	}
	return strings.Join(parts, ", ")
}

func (s DestinationStore) pkWhere() string {
	parts := make([]string, len(s.pk))
	for i, c := range s.pk {
		parts[i] = database.QuoteIdent(c.Name) + " = ?"
	}
	return strings.Join(parts, " AND ")
}
