// Package index manages vector-index lifecycle: deciding when an ANN index
// is worth building and building it exactly once across competing workers.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/embedq/embedq/domain/queue"
	"github.com/embedq/embedq/domain/vectorizer"
	"github.com/embedq/embedq/infrastructure/persistence"
	"github.com/embedq/embedq/internal/database"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// lockNamespace is the advisory-lock classid shared by all index builds.
// The second lock key is the destination table's oid.
const lockNamespace = 761364518

// leaseTTL bounds how long a crashed builder can block others on backends
// that use lease rows instead of advisory locks.
const leaseTTL = 5 * time.Minute

// Manager drives the index lifecycle for vectorizers whose config asks for
// an ANN index.
type Manager struct {
	db     database.Database
	leases persistence.LeaseStore
	logger *slog.Logger
}

// NewManager creates a new Manager.
func NewManager(db database.Database, leases persistence.LeaseStore, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return Manager{db: db, leases: leases, logger: logger}
}

// EnsureIndex checks whether the vectorizer's index should exist yet and
// builds it if so. Safe to call on every worker tick: each gate is cheap
// and the build itself is serialized, so losers skip silently.
func (m Manager) EnsureIndex(ctx context.Context, v vectorizer.Vectorizer, q queue.Store, dest persistence.DestinationStore) error {
	cfg := v.Config().Indexing
	if cfg == nil {
		return nil
	}
	if _, none := cfg.(vectorizer.IndexingNone); none {
		return nil
	}

	table := dest.IndexTable()
	name := indexName(table)

	state, err := m.indexState(ctx, name, accessMethod(cfg))
	if err != nil {
		return err
	}
	if state == indexCurrent {
		return nil
	}

	// A stale index already cleared the gates when it was first built;
	// switching implementations rebuilds it without waiting again.
	if state == indexMissing {
		minRows, whenEmpty, err := gates(cfg)
		if err != nil {
			return err
		}

		if whenEmpty {
			pending, err := q.HasPending(ctx)
			if err != nil {
				return err
			}
			if pending {
				return nil
			}
		}

		embedded, err := dest.EmbeddedRowCount(ctx, int(minRows))
		if err != nil {
			return err
		}
		if embedded < minRows {
			return nil
		}
	}

	return m.build(ctx, v, cfg, table, dest.IndexColumn(), name)
}

// build creates the index under mutual exclusion and re-checks existence
// once the lock is held, so two workers passing the gates together still
// produce one index.
func (m Manager) build(ctx context.Context, v vectorizer.Vectorizer, cfg vectorizer.Indexing, table, column, name string) error {
	ddl, err := indexDDL(m.db.IsPostgres(), cfg, table, column, name)
	if err != nil {
		return err
	}

	if m.db.IsPostgres() {
		return database.WithTransaction(ctx, m.db, func(tx *gorm.DB) error {
			var locked bool
			err := tx.Raw(
				`SELECT pg_try_advisory_xact_lock(?, ?::regclass::oid::int)`,
				lockNamespace, table,
			).Scan(&locked).Error
			if err != nil {
				return fmt.Errorf("acquire index build lock for %s: %w", table, err)
			}
			if !locked {
				m.logger.Warn("index build already in progress", "vectorizer", v.ID(), "table", table)
				return nil
			}

			state, err := m.indexStateIn(tx, name, accessMethod(cfg))
			if err != nil {
				return err
			}
			if state == indexCurrent {
				return nil
			}
			if state == indexStale {
				if err := tx.Exec("DROP INDEX " + database.QuoteIdent(name)).Error; err != nil {
					return fmt.Errorf("drop stale index %s: %w", name, err)
				}
			}

			if err := tx.Exec(ddl).Error; err != nil {
				return fmt.Errorf("create index %s: %w", name, err)
			}
			m.logger.Info("vector index created", "vectorizer", v.ID(), "index", name)
			return nil
		})
	}

	owner := uuid.New().String()
	acquired, err := m.leases.Acquire(ctx, name, owner, leaseTTL)
	if err != nil {
		return fmt.Errorf("acquire index build lease for %s: %w", name, err)
	}
	if !acquired {
		m.logger.Warn("index build already in progress", "vectorizer", v.ID(), "table", table)
		return nil
	}
	defer func() {
		if err := m.leases.Release(context.WithoutCancel(ctx), name, owner); err != nil {
			m.logger.Warn("release index build lease", "index", name, "error", err)
		}
	}()

	state, err := m.indexState(ctx, name, accessMethod(cfg))
	if err != nil {
		return err
	}
	if state == indexCurrent {
		return nil
	}
	if state == indexStale {
		if err := m.db.Session(ctx).Exec("DROP INDEX " + database.QuoteIdent(name)).Error; err != nil {
			return fmt.Errorf("drop stale index %s: %w", name, err)
		}
	}

	if err := m.db.Session(ctx).Exec(ddl).Error; err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	m.logger.Info("vector index created", "vectorizer", v.ID(), "index", name)
	return nil
}

// indexState describes what currently holds the derived index name.
type indexState int

const (
	indexMissing indexState = iota
	indexCurrent
	// indexStale means the name is taken by an index built with a different
	// access method, left behind by an earlier indexing config.
	indexStale
)

func (m Manager) indexState(ctx context.Context, name, method string) (indexState, error) {
	return m.indexStateIn(m.db.Session(ctx), name, method)
}

// indexStateIn matches on the installed index definition, not just the name,
// so switching implementations triggers a rebuild instead of a silent skip.
func (m Manager) indexStateIn(session *gorm.DB, name, method string) (indexState, error) {
	if m.db.IsPostgres() {
		var def string
		err := session.Raw(`SELECT indexdef FROM pg_indexes WHERE indexname = ?`, name).Scan(&def).Error
		if err != nil {
			return indexMissing, err
		}
		if def == "" {
			return indexMissing, nil
		}
		if methodMatches(def, method) {
			return indexCurrent, nil
		}
		return indexStale, nil
	}

	// SQLite indexes have no access method; any index holding the name is
	// the current one.
	var count int64
	err := session.Raw(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ?`, name).Scan(&count).Error
	if err != nil {
		return indexMissing, err
	}
	if count > 0 {
		return indexCurrent, nil
	}
	return indexMissing, nil
}

// methodMatches reports whether an installed index definition uses the given
// access method.
func methodMatches(indexdef, method string) bool {
	return method == "" || strings.Contains(strings.ToLower(indexdef), " using "+method+" ")
}

// accessMethod returns the postgres access method the config builds with.
func accessMethod(cfg vectorizer.Indexing) string {
	switch cfg.(type) {
	case vectorizer.IndexingDiskANN:
		return "diskann"
	case vectorizer.IndexingHNSW:
		return "hnsw"
	default:
		return ""
	}
}

// gates extracts the build thresholds shared by both index families.
func gates(cfg vectorizer.Indexing) (minRows int64, whenEmpty bool, err error) {
	switch c := cfg.(type) {
	case vectorizer.IndexingDiskANN:
		return c.MinRows, c.CreateWhenQueueEmpty, nil
	case vectorizer.IndexingHNSW:
		return c.MinRows, c.CreateWhenQueueEmpty, nil
	default:
		return 0, false, fmt.Errorf("%w: unknown indexing implementation %q", vectorizer.ErrInvalidConfig, cfg.Implementation())
	}
}

// indexName derives the index name from the indexed table.
func indexName(table string) string {
	return table + "_embedding_idx"
}

// indexDDL assembles the CREATE INDEX statement. Only explicitly set
// options reach the WITH clause; the access method's own defaults cover
// the rest.
func indexDDL(isPostgres bool, cfg vectorizer.Indexing, table, column, name string) (string, error) {
	if err := database.ValidateIdent(table); err != nil {
		return "", err
	}
	if err := database.ValidateIdent(column); err != nil {
		return "", err
	}

	if !isPostgres {
		// SQLite has no ANN access methods; a plain index keeps the
		// lifecycle uniform for development databases.
		return fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS %s ON %s (%s)`,
			database.QuoteIdent(name), database.QuoteIdent(table), database.QuoteIdent(column),
		), nil
	}

	switch c := cfg.(type) {
	case vectorizer.IndexingDiskANN:
		var opts []string
		if c.StorageLayout != nil {
			opts = append(opts, "storage_layout = "+*c.StorageLayout)
		}
		if c.NumNeighbors != nil {
			opts = append(opts, "num_neighbors = "+strconv.Itoa(*c.NumNeighbors))
		}
		if c.SearchListSize != nil {
			opts = append(opts, "search_list_size = "+strconv.Itoa(*c.SearchListSize))
		}
		if c.MaxAlpha != nil {
			opts = append(opts, "max_alpha = "+strconv.FormatFloat(*c.MaxAlpha, 'f', -1, 64))
		}
		if c.NumDimensions != nil {
			opts = append(opts, "num_dimensions = "+strconv.Itoa(*c.NumDimensions))
		}
		if c.NumBitsPerDimension != nil {
			opts = append(opts, "num_bits_per_dimension = "+strconv.Itoa(*c.NumBitsPerDimension))
		}
		return assembleDDL(name, table, column, "diskann", "", opts), nil
	case vectorizer.IndexingHNSW:
		opClass := vectorizer.OpClassCosine
		if c.OpClass != nil {
			opClass = *c.OpClass
		}
		var opts []string
		if c.M != nil {
			opts = append(opts, "m = "+strconv.Itoa(*c.M))
		}
		if c.EfConstruction != nil {
			opts = append(opts, "ef_construction = "+strconv.Itoa(*c.EfConstruction))
		}
		return assembleDDL(name, table, column, "hnsw", opClass, opts), nil
	default:
		return "", fmt.Errorf("%w: unknown indexing implementation %q", vectorizer.ErrInvalidConfig, cfg.Implementation())
	}
}

func assembleDDL(name, table, column, method, opClass string, opts []string) string {
	ddl := fmt.Sprintf(
		`CREATE INDEX %s ON %s USING %s (%s`,
		database.QuoteIdent(name), database.QuoteIdent(table), method, database.QuoteIdent(column),
	)
	if opClass != "" {
		ddl += " " + opClass
	}
	ddl += ")"
	if len(opts) > 0 {
		ddl += " WITH (" + strings.Join(opts, ", ") + ")"
	}
	return ddl
}
