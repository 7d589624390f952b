package provision

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/embedq/embedq/domain/vectorizer"
	"github.com/embedq/embedq/internal/database"
)

// Provisioner creates and removes the destination objects a vectorizer
// writes to.
type Provisioner struct {
	db         database.Database
	grantRead  []string
	grantWrite []string
}

// NewProvisioner creates a Provisioner. grantRead and grantWrite name
// database roles granted access to destination objects on PostgreSQL.
func NewProvisioner(db database.Database, grantRead, grantWrite []string) Provisioner {
	return Provisioner{db: db, grantRead: grantRead, grantWrite: grantWrite}
}

// EnsureExtensions installs the vector extension on PostgreSQL. No-op on
// SQLite, where embeddings are stored as text.
func (p Provisioner) EnsureExtensions(ctx context.Context) error {
	if !p.db.IsPostgres() {
		return nil
	}
	if err := p.db.Session(ctx).Exec(`CREATE EXTENSION IF NOT EXISTS vector`).Error; err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	return nil
}

// CheckCollisions fails with vectorizer.ErrDuplicate when any object the
// vectorizer would create already exists. Run before any DDL so creation
// never half-lands on someone else's tables.
func (p Provisioner) CheckCollisions(ctx context.Context, v vectorizer.Vectorizer) error {
	names := []string{v.QueueTable(), v.FailedQueueTable()}
	if dest, ok := v.Config().TableDestination(); ok {
		names = append(names, dest.TargetTable)
		if dest.ViewName != "" {
			names = append(names, dest.ViewName)
		}
	}

	for _, name := range names {
		exists, err := p.relationExists(ctx, name)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: relation %s already exists", vectorizer.ErrDuplicate, name)
		}
	}

	if dest, ok := v.Config().ColumnDestination(); ok {
		exists, err := p.columnExists(ctx, v.SourceTable(), dest.EmbeddingColumn)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: column %s.%s already exists", vectorizer.ErrDuplicate, v.SourceTable(), dest.EmbeddingColumn)
		}
	}
	return nil
}

// EnsureDestination creates the destination table and view, or the
// in-place embedding column. Idempotent.
func (p Provisioner) EnsureDestination(ctx context.Context, v vectorizer.Vectorizer) error {
	if dest, ok := v.Config().ColumnDestination(); ok {
		return p.ensureColumn(ctx, v, dest)
	}
	dest, ok := v.Config().TableDestination()
	if !ok {
		return fmt.Errorf("%w: vectorizer %d has no destination", vectorizer.ErrInvalidConfig, v.ID())
	}
	return p.ensureTable(ctx, v, dest)
}

func (p Provisioner) ensureTable(ctx context.Context, v vectorizer.Vectorizer, dest vectorizer.DestinationTable) error {
	for _, name := range []string{dest.TargetTable, dest.ViewName} {
		if name == "" {
			continue
		}
		if err := database.ValidateIdent(name); err != nil {
			return fmt.Errorf("%w: %v", vectorizer.ErrInvalidArgument, err)
		}
	}

	session := p.db.Session(ctx)

	pkDDL := make([]string, 0, len(v.SourcePK()))
	pkList := make([]string, 0, len(v.SourcePK()))
	for _, c := range v.SourcePK() {
		pkDDL = append(pkDDL, database.QuoteIdent(c.Name)+" "+c.Type+" NOT NULL")
		pkList = append(pkList, database.QuoteIdent(c.Name))
	}

	tableDDL := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (embedding_uuid TEXT PRIMARY KEY, %s, chunk_seq INTEGER NOT NULL, chunk TEXT NOT NULL, embedding %s NOT NULL, generated_at TIMESTAMP NOT NULL, UNIQUE (%s, chunk_seq))`,
		database.QuoteIdent(dest.TargetTable),
		strings.Join(pkDDL, ", "),
		p.embeddingType(v.Config()),
		strings.Join(pkList, ", "),
	)
	if err := session.Exec(tableDDL).Error; err != nil {
		return fmt.Errorf("create destination table %s: %w", dest.TargetTable, err)
	}

	if dest.ViewName != "" {
		joins := make([]string, 0, len(v.SourcePK()))
		for _, c := range v.SourcePK() {
			joins = append(joins, fmt.Sprintf("t.%s = s.%s", database.QuoteIdent(c.Name), database.QuoteIdent(c.Name)))
		}
		if err := session.Exec(`DROP VIEW IF EXISTS ` + database.QuoteIdent(dest.ViewName)).Error; err != nil {
			return fmt.Errorf("replace view %s: %w", dest.ViewName, err)
		}
		viewDDL := fmt.Sprintf(
			`CREATE VIEW %s AS SELECT t.embedding_uuid, t.chunk_seq, t.chunk, t.embedding, t.generated_at, s.* FROM %s t LEFT JOIN %s s ON %s`,
			database.QuoteIdent(dest.ViewName),
			database.QuoteIdent(dest.TargetTable),
			database.QuoteIdent(v.SourceTable()),
			strings.Join(joins, " AND "),
		)
		if err := session.Exec(viewDDL).Error; err != nil {
			return fmt.Errorf("create view %s: %w", dest.ViewName, err)
		}
	}

	return p.applyGrants(ctx, dest)
}

func (p Provisioner) ensureColumn(ctx context.Context, v vectorizer.Vectorizer, dest vectorizer.DestinationColumn) error {
	if err := database.ValidateIdent(dest.EmbeddingColumn); err != nil {
		return fmt.Errorf("%w: %v", vectorizer.ErrInvalidArgument, err)
	}

	exists, err := p.columnExists(ctx, v.SourceTable(), dest.EmbeddingColumn)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	ddl := fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`,
		database.QuoteIdent(v.SourceTable()),
		database.QuoteIdent(dest.EmbeddingColumn),
		p.embeddingType(v.Config()),
	)
	if err := p.db.Session(ctx).Exec(ddl).Error; err != nil {
		return fmt.Errorf("add embedding column to %s: %w", v.SourceTable(), err)
	}

	if p.db.IsPostgres() {
		// Vectors do not compress well; keep them in the main relation
		// rather than TOAST.
		storage := fmt.Sprintf(
			`ALTER TABLE %s ALTER COLUMN %s SET STORAGE MAIN`,
			database.QuoteIdent(v.SourceTable()), database.QuoteIdent(dest.EmbeddingColumn),
		)
		if err := p.db.Session(ctx).Exec(storage).Error; err != nil {
			return fmt.Errorf("set embedding column storage: %w", err)
		}
	}
	return nil
}

// DropDestination removes the destination objects. Idempotent; column mode
// drops the embedding column.
func (p Provisioner) DropDestination(ctx context.Context, v vectorizer.Vectorizer) error {
	session := p.db.Session(ctx)

	if dest, ok := v.Config().TableDestination(); ok {
		if dest.ViewName != "" {
			if err := session.Exec(`DROP VIEW IF EXISTS ` + database.QuoteIdent(dest.ViewName)).Error; err != nil {
				return fmt.Errorf("drop view %s: %w", dest.ViewName, err)
			}
		}
		if err := session.Exec(`DROP TABLE IF EXISTS ` + database.QuoteIdent(dest.TargetTable)).Error; err != nil {
			return fmt.Errorf("drop destination table %s: %w", dest.TargetTable, err)
		}
		return nil
	}

	if dest, ok := v.Config().ColumnDestination(); ok {
		exists, err := p.columnExists(ctx, v.SourceTable(), dest.EmbeddingColumn)
		if err != nil || !exists {
			return err
		}
		ddl := fmt.Sprintf(
			`ALTER TABLE %s DROP COLUMN %s`,
			database.QuoteIdent(v.SourceTable()), database.QuoteIdent(dest.EmbeddingColumn),
		)
		if err := session.Exec(ddl).Error; err != nil {
			return fmt.Errorf("drop embedding column from %s: %w", v.SourceTable(), err)
		}
	}
	return nil
}

func (p Provisioner) applyGrants(ctx context.Context, dest vectorizer.DestinationTable) error {
	if !p.db.IsPostgres() {
		return nil
	}

	session := p.db.Session(ctx)
	for _, role := range p.grantRead {
		if err := database.ValidateIdent(role); err != nil {
			return fmt.Errorf("grant read role: %w", err)
		}
		objects := []string{dest.TargetTable}
		if dest.ViewName != "" {
			objects = append(objects, dest.ViewName)
		}
		for _, obj := range objects {
			grant := fmt.Sprintf(`GRANT SELECT ON %s TO %s`, database.QuoteIdent(obj), database.QuoteIdent(role))
			if err := session.Exec(grant).Error; err != nil {
				slog.Warn("grant failed", "object", obj, "role", role, "error", err)
			}
		}
	}
	for _, role := range p.grantWrite {
		if err := database.ValidateIdent(role); err != nil {
			return fmt.Errorf("grant write role: %w", err)
		}
		grant := fmt.Sprintf(
			`GRANT SELECT, INSERT, UPDATE, DELETE ON %s TO %s`,
			database.QuoteIdent(dest.TargetTable), database.QuoteIdent(role),
		)
		if err := session.Exec(grant).Error; err != nil {
			slog.Warn("grant failed", "object", dest.TargetTable, "role", role, "error", err)
		}
	}
	return nil
}

// embeddingType returns the SQL type of the embedding column.
func (p Provisioner) embeddingType(cfg vectorizer.Config) string {
	if p.db.IsPostgres() {
		if cfg.Embedding != nil {
			if dims := cfg.Embedding.VectorDimensions(); dims > 0 {
				return fmt.Sprintf("VECTOR(%d)", dims)
			}
		}
		return "VECTOR"
	}
	return "TEXT"
}

func (p Provisioner) relationExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	if p.db.IsPostgres() {
		err := p.db.Session(ctx).Raw(`SELECT to_regclass(?) IS NOT NULL`, name).Scan(&exists).Error
		return exists, err
	}
	var count int64
	err := p.db.Session(ctx).Raw(
		`SELECT COUNT(*) FROM sqlite_master WHERE name = ? AND type IN ('table', 'view')`, name,
	).Scan(&count).Error
	return count > 0, err
}

func (p Provisioner) columnExists(ctx context.Context, table, column string) (bool, error) {
	if p.db.IsPostgres() {
		var exists bool
		err := p.db.Session(ctx).Raw(`
			SELECT EXISTS(
				SELECT 1 FROM information_schema.columns
				WHERE table_schema = current_schema() AND table_name = ? AND column_name = ?
			)
		`, table, column).Scan(&exists).Error
		return exists, err
	}

	if err := database.ValidateIdent(table); err != nil {
		return false, err
	}
	var count int64
	sql := fmt.Sprintf(`SELECT COUNT(*) FROM pragma_table_info(%s) WHERE name = ?`, quoteLiteral(table))
	err := p.db.Session(ctx).Raw(sql, column).Scan(&count).Error
	return count > 0, err
}

// quoteLiteral single-quotes a string literal for the pragma_table_info
// call, which does not accept bind parameters on all driver versions.
func quoteLiteral(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}
