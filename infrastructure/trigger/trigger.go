// Package trigger synthesizes the change-capture triggers that keep a
// vectorizer's queue in step with its source table.
package trigger

import (
	"context"
	"fmt"
	"strings"

	"github.com/embedq/embedq/domain/vectorizer"
	"github.com/embedq/embedq/internal/database"
)

// Generator installs and removes change-capture triggers. Install is
// re-invocable: it drops and recreates the trigger objects, so a config
// change that alters the change predicate takes effect in place.
type Generator struct {
	db database.Database
}

// NewGenerator creates a new Generator.
func NewGenerator(db database.Database) Generator {
	return Generator{db: db}
}

// Install creates the triggers for a vectorizer. source must describe the
// current source-table shape; the update predicate covers every column
// except the embedding column, so embedding writes never re-enqueue the
// row they came from.
func (g Generator) Install(ctx context.Context, v vectorizer.Vectorizer, source vectorizer.SourceTable) error {
	if err := database.ValidateIdent(v.TriggerName()); err != nil {
		return fmt.Errorf("%w: %v", vectorizer.ErrInvalidArgument, err)
	}

	if err := g.Drop(ctx, v); err != nil {
		return err
	}

	if g.db.IsPostgres() {
		return g.installPostgres(ctx, v, source)
	}
	return g.installSQLite(ctx, v, source)
}

// Drop removes the triggers. Idempotent.
func (g Generator) Drop(ctx context.Context, v vectorizer.Vectorizer) error {
	session := g.db.Session(ctx)
	name := v.TriggerName()

	if g.db.IsPostgres() {
		stmts := []string{
			fmt.Sprintf(`DROP TRIGGER IF EXISTS %s ON %s`, database.QuoteIdent(name), database.QuoteIdent(v.SourceTable())),
			fmt.Sprintf(`DROP TRIGGER IF EXISTS %s ON %s`, database.QuoteIdent(name+"_truncate"), database.QuoteIdent(v.SourceTable())),
			fmt.Sprintf(`DROP FUNCTION IF EXISTS %s()`, database.QuoteIdent(name)),
		}
		for _, stmt := range stmts {
			if err := session.Exec(stmt).Error; err != nil {
				return fmt.Errorf("drop trigger %s: %w", name, err)
			}
		}
		return nil
	}

	for _, suffix := range []string{"_ins", "_upd", "_updkey", "_del"} {
		stmt := `DROP TRIGGER IF EXISTS ` + database.QuoteIdent(name+suffix)
		if err := session.Exec(stmt).Error; err != nil {
			return fmt.Errorf("drop trigger %s%s: %w", name, suffix, err)
		}
	}
	return nil
}

func (g Generator) installPostgres(ctx context.Context, v vectorizer.Vectorizer, source vectorizer.SourceTable) error {
	session := g.db.Session(ctx)
	name := v.TriggerName()
	src := database.QuoteIdent(v.SourceTable())
	queueTable := database.QuoteIdent(v.QueueTable())

	pkList := pkColumnList(v.SourcePK(), "")
	newPK := pkColumnList(v.SourcePK(), "NEW.")
	oldPKWhere := pkWhere(v.SourcePK(), "OLD.")

	destCleanup := g.destDeleteStatement(v, oldPKWhere)
	truncateDest := g.destTruncateStatement(v)

	fn := fmt.Sprintf(`
CREATE FUNCTION %s() RETURNS TRIGGER AS $trg$
BEGIN
	IF (TG_OP = 'TRUNCATE') THEN
		TRUNCATE %s;
		%s
		RETURN NULL;
	ELSIF (TG_OP = 'DELETE') THEN
		%s
		DELETE FROM %s WHERE %s;
		RETURN OLD;
	ELSIF (TG_OP = 'UPDATE') THEN
		IF (%s) THEN
			%s
			INSERT INTO %s (%s, queued_at) VALUES (%s, now());
		ELSIF (%s) THEN
			INSERT INTO %s (%s, queued_at) VALUES (%s, now());
		END IF;
		RETURN NEW;
	END IF;
	INSERT INTO %s (%s, queued_at) VALUES (%s, now());
	RETURN NEW;
END;
$trg$ LANGUAGE plpgsql`,
		database.QuoteIdent(name),
		queueTable,
		truncateDest,
		destCleanup,
		queueTable, oldPKWhere,
		g.pkChangedPredicate(v.SourcePK()),
		destCleanup,
		queueTable, pkList, newPK,
		g.changePredicate(v, source),
		queueTable, pkList, newPK,
		queueTable, pkList, newPK,
	)
	if err := session.Exec(fn).Error; err != nil {
		return fmt.Errorf("create trigger function %s: %w", name, err)
	}

	rowTrigger := fmt.Sprintf(
		`CREATE TRIGGER %s AFTER INSERT OR UPDATE OR DELETE ON %s FOR EACH ROW EXECUTE FUNCTION %s()`,
		database.QuoteIdent(name), src, database.QuoteIdent(name),
	)
	if err := session.Exec(rowTrigger).Error; err != nil {
		return fmt.Errorf("create trigger %s: %w", name, err)
	}

	truncTrigger := fmt.Sprintf(
		`CREATE TRIGGER %s AFTER TRUNCATE ON %s FOR EACH STATEMENT EXECUTE FUNCTION %s()`,
		database.QuoteIdent(name+"_truncate"), src, database.QuoteIdent(name),
	)
	if err := session.Exec(truncTrigger).Error; err != nil {
		return fmt.Errorf("create truncate trigger %s: %w", name, err)
	}
	return nil
}

func (g Generator) installSQLite(ctx context.Context, v vectorizer.Vectorizer, source vectorizer.SourceTable) error {
	session := g.db.Session(ctx)
	name := v.TriggerName()
	src := database.QuoteIdent(v.SourceTable())
	queueTable := database.QuoteIdent(v.QueueTable())

	pkList := pkColumnList(v.SourcePK(), "")
	newPK := pkColumnList(v.SourcePK(), "NEW.")
	oldPKWhere := pkWhere(v.SourcePK(), "OLD.")

	enqueueNew := fmt.Sprintf(`INSERT INTO %s (%s, queued_at) VALUES (%s, CURRENT_TIMESTAMP);`, queueTable, pkList, newPK)
	destCleanup := g.destDeleteStatement(v, oldPKWhere)

	stmts := []string{
		fmt.Sprintf(`CREATE TRIGGER %s AFTER INSERT ON %s FOR EACH ROW BEGIN %s END`,
			database.QuoteIdent(name+"_ins"), src, enqueueNew),
		fmt.Sprintf(`CREATE TRIGGER %s AFTER UPDATE ON %s FOR EACH ROW WHEN NOT (%s) AND (%s) BEGIN %s END`,
			database.QuoteIdent(name+"_upd"), src,
			g.pkChangedPredicate(v.SourcePK()), g.changePredicate(v, source), enqueueNew),
		fmt.Sprintf(`CREATE TRIGGER %s AFTER UPDATE ON %s FOR EACH ROW WHEN %s BEGIN %s %s END`,
			database.QuoteIdent(name+"_updkey"), src,
			g.pkChangedPredicate(v.SourcePK()), destCleanup, enqueueNew),
		fmt.Sprintf(`CREATE TRIGGER %s AFTER DELETE ON %s FOR EACH ROW BEGIN %s DELETE FROM %s WHERE %s; END`,
			database.QuoteIdent(name+"_del"), src, destCleanup, queueTable, oldPKWhere),
	}
	for _, stmt := range stmts {
		if err := session.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create trigger %s: %w", name, err)
		}
	}
	return nil
}

// destDeleteStatement removes embeddings for a vanished or re-keyed row.
// Column mode holds embeddings on the source row itself, so there is
// nothing to clean up.
func (g Generator) destDeleteStatement(v vectorizer.Vectorizer, oldPKWhere string) string {
	dest, ok := v.Config().TableDestination()
	if !ok {
		return ""
	}
	return fmt.Sprintf(`DELETE FROM %s WHERE %s;`, database.QuoteIdent(dest.TargetTable), oldPKWhere)
}

func (g Generator) destTruncateStatement(v vectorizer.Vectorizer) string {
	dest, ok := v.Config().TableDestination()
	if !ok {
		return ""
	}
	return fmt.Sprintf(`TRUNCATE %s;`, database.QuoteIdent(dest.TargetTable))
}

// changePredicate matches updates worth re-embedding: any column changed
// except the embedding column itself.
func (g Generator) changePredicate(v vectorizer.Vectorizer, source vectorizer.SourceTable) string {
	embeddingColumn := v.Config().EmbeddingColumn()

	var parts []string
	for _, c := range source.Columns {
		if c.Name == embeddingColumn {
			continue
		}
		parts = append(parts, g.distinct("OLD."+database.QuoteIdent(c.Name), "NEW."+database.QuoteIdent(c.Name)))
	}
	if len(parts) == 0 {
		return "FALSE"
	}
	return strings.Join(parts, " OR ")
}

func (g Generator) pkChangedPredicate(pk []vectorizer.PKColumn) string {
	parts := make([]string, len(pk))
	for i, c := range pk {
		parts[i] = g.distinct("OLD."+database.QuoteIdent(c.Name), "NEW."+database.QuoteIdent(c.Name))
	}
	return strings.Join(parts, " OR ")
}

// distinct renders a null-safe inequality in the dialect's spelling.
func (g Generator) distinct(a, b string) string {
	if g.db.IsPostgres() {
		return a + " IS DISTINCT FROM " + b
	}
	return a + " IS NOT " + b
}

func pkColumnList(pk []vectorizer.PKColumn, prefix string) string {
	parts := make([]string, len(pk))
	for i, c := range pk {
		parts[i] = prefix + database.QuoteIdent(c.Name)
	}
	return strings.Join(parts, ", ")
}

func pkWhere(pk []vectorizer.PKColumn, valuePrefix string) string {
	parts := make([]string, len(pk))
	for i, c := range pk {
		parts[i] = database.QuoteIdent(c.Name) + " = " + valuePrefix + database.QuoteIdent(c.Name)
	}
	return strings.Join(parts, " AND ")
}
