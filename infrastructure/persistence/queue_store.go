package persistence

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/embedq/embedq/domain/queue"
	"github.com/embedq/embedq/domain/vectorizer"
	"github.com/embedq/embedq/internal/database"
	"gorm.io/gorm"
)

// depthProbeLimit bounds the approximate queue-depth count. Backlogs past
// this size report queue.ApproxOverflow instead of an exact figure.
const depthProbeLimit = 10000

// QueueStore implements queue.Store over one vectorizer's pair of dynamic
// queue tables. Table and column names are validated at construction and
// interpolated into SQL; row values always travel as bind parameters.
type QueueStore struct {
	db          database.Database
	queueTable  string
	failTable   string
	sourceTable string
	pk          []vectorizer.PKColumn
	maxRetries  int
	backoff     queue.Backoff
}

// NewQueueStore creates the queue store for a vectorizer.
func NewQueueStore(db database.Database, v vectorizer.Vectorizer) (QueueStore, error) {
	names := []string{v.QueueTable(), v.FailedQueueTable(), v.SourceTable()}
	for _, c := range v.SourcePK() {
		names = append(names, c.Name)
	}
	for _, name := range names {
		if err := database.ValidateIdent(name); err != nil {
			return QueueStore{}, fmt.Errorf("queue store for vectorizer %d: %w", v.ID(), err)
		}
	}
	for _, c := range v.SourcePK() {
		if !columnTypePattern.MatchString(c.Type) {
			return QueueStore{}, fmt.Errorf("queue store for vectorizer %d: invalid column type %q", v.ID(), c.Type)
		}
	}

	maxRetries := vectorizer.DefaultLoadingRetries
	if l := v.Config().Loading; l != nil {
		maxRetries = l.Retries()
	}

	return QueueStore{
		db:          db,
		queueTable:  v.QueueTable(),
		failTable:   v.FailedQueueTable(),
		sourceTable: v.SourceTable(),
		pk:          v.SourcePK(),
		maxRetries:  maxRetries,
		backoff:     queue.DefaultBackoff(),
	}, nil
}

// columnTypePattern accepts SQL type names as reported by table
// introspection, including parameterized forms like varchar(64).
var columnTypePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_ ]*(\([0-9, ]+\))?$`)

// Provision creates the live and failed queue tables. Idempotent.
func (s QueueStore) Provision(ctx context.Context) error {
	session := s.db.Session(ctx)

	queueDDL := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (%s, queued_at TIMESTAMP NOT NULL, retries INTEGER NOT NULL DEFAULT 0, retry_after TIMESTAMP)`,
		database.QuoteIdent(s.queueTable), s.pkColumnDDL(),
	)
	if err := session.Exec(queueDDL).Error; err != nil {
		return fmt.Errorf("create queue table %s: %w", s.queueTable, err)
	}

	indexDDL := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s ON %s (retry_after)`,
		database.QuoteIdent("idx_"+s.queueTable+"_retry_after"), database.QuoteIdent(s.queueTable),
	)
	if err := session.Exec(indexDDL).Error; err != nil {
		return fmt.Errorf("create queue index on %s: %w", s.queueTable, err)
	}

	failDDL := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (%s, created_at TIMESTAMP NOT NULL, failure_stage TEXT NOT NULL)`,
		database.QuoteIdent(s.failTable), s.pkColumnDDL(),
	)
	if err := session.Exec(failDDL).Error; err != nil {
		return fmt.Errorf("create failed queue table %s: %w", s.failTable, err)
	}

	return nil
}

// Drop removes both queue tables. Idempotent.
func (s QueueStore) Drop(ctx context.Context) error {
	session := s.db.Session(ctx)
	for _, table := range []string{s.queueTable, s.failTable} {
		if err := session.Exec(`DROP TABLE IF EXISTS ` + database.QuoteIdent(table)).Error; err != nil {
			return fmt.Errorf("drop queue table %s: %w", table, err)
		}
	}
	return nil
}

// Enqueue appends pending items for the given keys.
func (s QueueStore) Enqueue(ctx context.Context, keys []queue.Key) error {
	if len(keys) == 0 {
		return nil
	}

	now := time.Now().UTC()
	placeholders := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)*(len(s.pk)+1))
	rowHoles := "(" + strings.Repeat("?, ", len(s.pk)) + "?)"

	for _, key := range keys {
		if key.Len() != len(s.pk) {
			return fmt.Errorf("%w: key %s has %d values, want %d", vectorizer.ErrInvalidArgument, key, key.Len(), len(s.pk))
		}
		placeholders = append(placeholders, rowHoles)
		args = append(args, key.Values()...)
		args = append(args, now)
	}

	sql := fmt.Sprintf(
		`INSERT INTO %s (%s, queued_at) VALUES %s`,
		database.QuoteIdent(s.queueTable), s.pkColumnList(""), strings.Join(placeholders, ", "),
	)
	if err := s.db.Session(ctx).Exec(sql, args...).Error; err != nil {
		return fmt.Errorf("enqueue into %s: %w", s.queueTable, err)
	}
	return nil
}

// Backfill enqueues every current row of the source table.
func (s QueueStore) Backfill(ctx context.Context) (int64, error) {
	sql := fmt.Sprintf(
		`INSERT INTO %s (%s, queued_at) SELECT %s, ? FROM %s`,
		database.QuoteIdent(s.queueTable), s.pkColumnList(""), s.pkColumnList(""), database.QuoteIdent(s.sourceTable),
	)

	result := s.db.Session(ctx).Exec(sql, time.Now().UTC())
	if result.Error != nil {
		return 0, fmt.Errorf("backfill %s from %s: %w", s.queueTable, s.sourceTable, result.Error)
	}
	return result.RowsAffected, nil
}

// ProcessBatch claims up to limit eligible items, invokes fn, and settles
// each item per its Result — all in one transaction, so an interrupted
// worker releases its claim untouched.
func (s QueueStore) ProcessBatch(ctx context.Context, limit int, fn func(ctx context.Context, items []queue.Item) ([]queue.Result, error)) (int, error) {
	if limit <= 0 {
		return 0, nil
	}

	return database.WithTransactionResult(ctx, s.db, func(tx *gorm.DB) (int, error) {
		items, err := s.claim(ctx, tx, limit)
		if err != nil {
			return 0, err
		}
		if len(items) == 0 {
			return 0, nil
		}

		// Processing joins the claim transaction, so destination writes
		// commit atomically with queue settlement.
		results, err := fn(database.ContextWithTx(ctx, tx), items)
		if err != nil {
			return 0, err
		}

		for _, res := range results {
			if err := s.settle(tx, res); err != nil {
				return 0, err
			}
		}
		return len(items), nil
	})
}

// claim selects eligible rows, locking them against concurrent workers on
// backends that support it.
func (s QueueStore) claim(ctx context.Context, tx *gorm.DB, limit int) ([]queue.Item, error) {
	sql := fmt.Sprintf(
		`SELECT %s, queued_at, retries, retry_after FROM %s WHERE retry_after IS NULL OR retry_after <= ? LIMIT %d`,
		s.pkColumnList(""), database.QuoteIdent(s.queueTable), limit,
	)
	if s.db.IsPostgres() {
		sql += " FOR UPDATE SKIP LOCKED"
	}

	rows, err := tx.WithContext(ctx).Raw(sql, time.Now().UTC()).Rows()
	if err != nil {
		return nil, fmt.Errorf("claim from %s: %w", s.queueTable, err)
	}
	defer func() { _ = rows.Close() }()

	var items []queue.Item
	for rows.Next() {
		keyVals := make([]any, len(s.pk))
		scan := make([]any, 0, len(s.pk)+3)
		for i := range keyVals {
			scan = append(scan, &keyVals[i])
		}

		var queuedAt time.Time
		var retries int
		var retryAfter *time.Time
		scan = append(scan, &queuedAt, &retries, &retryAfter)

		if err := rows.Scan(scan...); err != nil {
			return nil, fmt.Errorf("scan claimed row: %w", err)
		}

		after := time.Time{}
		if retryAfter != nil {
			after = *retryAfter
		}
		items = append(items, queue.NewItemWithRetries(queue.NewKey(normalizeKeyValues(keyVals)...), queuedAt, retries, after))
	}
	return items, rows.Err()
}

// settle applies one item's outcome inside the claim transaction.
func (s QueueStore) settle(tx *gorm.DB, res queue.Result) error {
	switch res.Disposition {
	case queue.Done:
		return s.deleteByKey(tx, s.queueTable, res.Item.Key())
	case queue.Failed:
		if res.Item.Retries()+1 > s.maxRetries {
			return s.demote(tx, res)
		}
		next := s.backoff.NextRetryAt(time.Now().UTC(), res.Item.Retries())
		sql := fmt.Sprintf(
			`UPDATE %s SET retries = retries + 1, retry_after = ? WHERE %s`,
			database.QuoteIdent(s.queueTable), s.pkWhere(),
		)
		args := append([]any{next}, res.Item.Key().Values()...)
		return tx.Exec(sql, args...).Error
	default:
		return fmt.Errorf("unknown disposition %d", res.Disposition)
	}
}

// demote moves an item to the failed queue atomically with its removal
// from the live queue.
func (s QueueStore) demote(tx *gorm.DB, res queue.Result) error {
	sql := fmt.Sprintf(
		`INSERT INTO %s (%s, created_at, failure_stage) VALUES (%s, ?, ?)`,
		database.QuoteIdent(s.failTable), s.pkColumnList(""), strings.TrimSuffix(strings.Repeat("?, ", len(s.pk)), ", "),
	)
	args := append(res.Item.Key().Values(), time.Now().UTC(), res.Stage)
	if err := tx.Exec(sql, args...).Error; err != nil {
		return fmt.Errorf("demote to %s: %w", s.failTable, err)
	}
	return s.deleteByKey(tx, s.queueTable, res.Item.Key())
}

func (s QueueStore) deleteByKey(tx *gorm.DB, table string, key queue.Key) error {
	sql := fmt.Sprintf(`DELETE FROM %s WHERE %s`, database.QuoteIdent(table), s.pkWhere())
	return tx.Exec(sql, key.Values()...).Error
}

// Depth returns the number of pending items. In approximate mode the count
// stops at a probe bound and saturates to queue.ApproxOverflow, keeping the
// status query cheap against a deep backlog.
func (s QueueStore) Depth(ctx context.Context, exact bool) (int64, error) {
	if exact {
		var count int64
		sql := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, database.QuoteIdent(s.queueTable))
		if err := s.db.Session(ctx).Raw(sql).Scan(&count).Error; err != nil {
			return 0, err
		}
		return count, nil
	}

	var count int64
	sql := fmt.Sprintf(
		`SELECT COUNT(*) FROM (SELECT 1 FROM %s LIMIT %d) probe`,
		database.QuoteIdent(s.queueTable), depthProbeLimit,
	)
	if err := s.db.Session(ctx).Raw(sql).Scan(&count).Error; err != nil {
		return 0, err
	}
	if count >= depthProbeLimit {
		return queue.ApproxOverflow, nil
	}
	return count, nil
}

// Backlog counts eligible items up to bound. The worker uses it to size
// its batch fan-out without scanning a deep queue.
func (s QueueStore) Backlog(ctx context.Context, bound int) (int64, error) {
	var count int64
	sql := fmt.Sprintf(
		`SELECT COUNT(*) FROM (SELECT 1 FROM %s WHERE retry_after IS NULL OR retry_after <= ? LIMIT %d) probe`,
		database.QuoteIdent(s.queueTable), bound,
	)
	if err := s.db.Session(ctx).Raw(sql, time.Now().UTC()).Scan(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// HasPending reports whether at least one item is queued.
func (s QueueStore) HasPending(ctx context.Context) (bool, error) {
	var one int
	sql := fmt.Sprintf(`SELECT 1 FROM %s LIMIT 1`, database.QuoteIdent(s.queueTable))
	err := s.db.Session(ctx).Raw(sql).Scan(&one).Error
	if err != nil {
		return false, err
	}
	return one == 1, nil
}

// FailedCount returns the size of the failed queue.
func (s QueueStore) FailedCount(ctx context.Context) (int64, error) {
	var count int64
	sql := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, database.QuoteIdent(s.failTable))
	if err := s.db.Session(ctx).Raw(sql).Scan(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FailedItems lists failed-queue entries, newest first.
func (s QueueStore) FailedItems(ctx context.Context, limit int) ([]queue.FailedItem, error) {
	sql := fmt.Sprintf(
		`SELECT %s, created_at, failure_stage FROM %s ORDER BY created_at DESC LIMIT %d`,
		s.pkColumnList(""), database.QuoteIdent(s.failTable), limit,
	)

	rows, err := s.db.Session(ctx).Raw(sql).Rows()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []queue.FailedItem
	for rows.Next() {
		keyVals := make([]any, len(s.pk))
		scan := make([]any, 0, len(s.pk)+2)
		for i := range keyVals {
			scan = append(scan, &keyVals[i])
		}

		var createdAt time.Time
		var stage string
		scan = append(scan, &createdAt, &stage)

		if err := rows.Scan(scan...); err != nil {
			return nil, fmt.Errorf("scan failed item: %w", err)
		}
		items = append(items, queue.NewFailedItem(queue.NewKey(normalizeKeyValues(keyVals)...), createdAt, stage))
	}
	return items, rows.Err()
}

// pkColumnDDL renders the primary-key columns for queue table DDL, typed to
// match the source table.
func (s QueueStore) pkColumnDDL() string {
	parts := make([]string, len(s.pk))
	for i, c := range s.pk {
		parts[i] = database.QuoteIdent(c.Name) + " " + c.Type + " NOT NULL"
	}
	return strings.Join(parts, ", ")
}

// pkColumnList renders the quoted primary-key column list, optionally
// prefixed.
func (s QueueStore) pkColumnList(prefix string) string {
	parts := make([]string, len(s.pk))
	for i, c := range s.pk {
		parts[i] = prefix + database.QuoteIdent(c.Name)
	}
	return strings.Join(parts, ", ")
}

// pkWhere renders an equality predicate over the full primary key.
func (s QueueStore) pkWhere() string {
	parts := make([]string, len(s.pk))
	for i, c := range s.pk {
		parts[i] = database.QuoteIdent(c.Name) + " = ?"
	}
	return strings.Join(parts, " AND ")
}

// normalizeKeyValues converts driver-specific scan results into stable key
// values; []byte comes back for text columns on some drivers.
func normalizeKeyValues(vals []any) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		if b, ok := v.([]byte); ok {
			out[i] = string(b)
			continue
		}
		out[i] = v
	}
	return out
}

var _ queue.Store = (*QueueStore)(nil)
