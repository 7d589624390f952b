package provision

import (
	"context"
	"fmt"

	"github.com/embedq/embedq/domain/vectorizer"
	"github.com/embedq/embedq/internal/database"
)

// Inspector reads source-table shape from the database catalog so pipeline
// validation can check referenced columns against reality.
type Inspector struct {
	db database.Database
}

// NewInspector creates a new Inspector.
func NewInspector(db database.Database) Inspector {
	return Inspector{db: db}
}

// InspectTable describes the named table. Fails with database.ErrNotFound
// when the table does not exist and vectorizer.ErrInvalidArgument when it
// has no primary key.
func (i Inspector) InspectTable(ctx context.Context, name string) (vectorizer.SourceTable, error) {
	if err := database.ValidateIdent(name); err != nil {
		return vectorizer.SourceTable{}, fmt.Errorf("%w: %v", vectorizer.ErrInvalidArgument, err)
	}

	var (
		table vectorizer.SourceTable
		err   error
	)
	if i.db.IsPostgres() {
		table, err = i.inspectPostgres(ctx, name)
	} else {
		table, err = i.inspectSQLite(ctx, name)
	}
	if err != nil {
		return vectorizer.SourceTable{}, err
	}

	if len(table.Columns) == 0 {
		return vectorizer.SourceTable{}, fmt.Errorf("%w: table %s", database.ErrNotFound, name)
	}
	if len(table.PrimaryKey()) == 0 {
		return vectorizer.SourceTable{}, fmt.Errorf("%w: table %s has no primary key", vectorizer.ErrInvalidArgument, name)
	}
	return table, nil
}

func (i Inspector) inspectPostgres(ctx context.Context, name string) (vectorizer.SourceTable, error) {
	type columnRow struct {
		ColumnName string
		DataType   string
	}

	var cols []columnRow
	err := i.db.Session(ctx).Raw(`
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = ?
		ORDER BY ordinal_position
	`, name).Scan(&cols).Error
	if err != nil {
		return vectorizer.SourceTable{}, fmt.Errorf("inspect table %s: %w", name, err)
	}

	var pkCols []string
	err = i.db.Session(ctx).Raw(`
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_name = tc.constraint_name
			AND kcu.table_schema = tc.table_schema
		WHERE tc.table_schema = current_schema()
			AND tc.table_name = ?
			AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.ordinal_position
	`, name).Scan(&pkCols).Error
	if err != nil {
		return vectorizer.SourceTable{}, fmt.Errorf("inspect primary key of %s: %w", name, err)
	}

	pk := make(map[string]bool, len(pkCols))
	for _, c := range pkCols {
		pk[c] = true
	}

	table := vectorizer.SourceTable{Name: name}
	for _, c := range cols {
		table.Columns = append(table.Columns, vectorizer.SourceColumn{
			Name:         c.ColumnName,
			Type:         c.DataType,
			IsPrimaryKey: pk[c.ColumnName],
		})
	}
	return orderPrimaryKey(table, pkCols), nil
}

func (i Inspector) inspectSQLite(ctx context.Context, name string) (vectorizer.SourceTable, error) {
	type pragmaRow struct {
		Name string
		Type string
		PK   int `gorm:"column:pk"`
	}

	var rows []pragmaRow
	sql := fmt.Sprintf(`PRAGMA table_info(%s)`, database.QuoteIdent(name))
	if err := i.db.Session(ctx).Raw(sql).Scan(&rows).Error; err != nil {
		return vectorizer.SourceTable{}, fmt.Errorf("inspect table %s: %w", name, err)
	}

	table := vectorizer.SourceTable{Name: name}
	var pkCols []string
	byOrdinal := make(map[int]string)
	for _, r := range rows {
		colType := r.Type
		if colType == "" {
			colType = "text"
		}
		table.Columns = append(table.Columns, vectorizer.SourceColumn{
			Name:         r.Name,
			Type:         colType,
			IsPrimaryKey: r.PK > 0,
		})
		if r.PK > 0 {
			byOrdinal[r.PK] = r.Name
		}
	}
	for ord := 1; ord <= len(byOrdinal); ord++ {
		pkCols = append(pkCols, byOrdinal[ord])
	}
	return orderPrimaryKey(table, pkCols), nil
}

// orderPrimaryKey rearranges Columns so PrimaryKey() yields key columns in
// declared key order, not table order.
func orderPrimaryKey(table vectorizer.SourceTable, pkOrder []string) vectorizer.SourceTable {
	if len(pkOrder) < 2 {
		return table
	}

	rank := make(map[string]int, len(pkOrder))
	for i, name := range pkOrder {
		rank[name] = i
	}

	ordered := make([]vectorizer.SourceColumn, 0, len(table.Columns))
	for _, name := range pkOrder {
		if c, ok := table.Column(name); ok {
			ordered = append(ordered, c)
		}
	}
	for _, c := range table.Columns {
		if _, isPK := rank[c.Name]; !isPK {
			ordered = append(ordered, c)
		}
	}
	table.Columns = ordered
	return table
}
