package database

import (
	"context"
	"testing"

	"github.com/embedq/embedq/domain/store"
)

type queryRow struct {
	ID      int64
	Name    string
	Enabled bool
}

func openQueryDB(t *testing.T) Database {
	t.Helper()
	db := openTestDB(t)
	ctx := context.Background()

	stmts := []string{
		`CREATE TABLE query_rows (id INTEGER PRIMARY KEY, name TEXT, enabled BOOLEAN)`,
		`INSERT INTO query_rows VALUES (1, 'alpha', 1)`,
		`INSERT INTO query_rows VALUES (2, 'beta', 0)`,
		`INSERT INTO query_rows VALUES (3, 'gamma', 1)`,
		`INSERT INTO query_rows VALUES (4, 'delta', 1)`,
	}
	for _, stmt := range stmts {
		if err := db.Session(ctx).Exec(stmt).Error; err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	return db
}

func findRows(t *testing.T, db Database, options ...store.Option) []queryRow {
	t.Helper()
	var rows []queryRow
	q := ApplyOptions(db.Session(context.Background()).Table("query_rows"), options...)
	if err := q.Find(&rows).Error; err != nil {
		t.Fatalf("find: %v", err)
	}
	return rows
}

func TestApplyOptions_Condition(t *testing.T) {
	db := openQueryDB(t)

	rows := findRows(t, db, store.WithName("beta"))
	if len(rows) != 1 || rows[0].ID != 2 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestApplyOptions_ConditionIn(t *testing.T) {
	db := openQueryDB(t)

	rows := findRows(t, db, store.WithConditionIn("id", []int64{1, 3}), store.WithOrderAsc("id"))
	if len(rows) != 2 || rows[0].ID != 1 || rows[1].ID != 3 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestApplyOptions_RawWhere(t *testing.T) {
	db := openQueryDB(t)

	rows := findRows(t, db, store.WithWhere("name LIKE ?", "%ta"))
	if len(rows) != 2 {
		t.Fatalf("expected beta and delta, got %+v", rows)
	}
}

func TestApplyOptions_Ordering(t *testing.T) {
	db := openQueryDB(t)

	rows := findRows(t, db, store.WithOrderDesc("name"))
	if len(rows) != 4 || rows[0].Name != "gamma" || rows[3].Name != "alpha" {
		t.Fatalf("unexpected order: %+v", rows)
	}
}

func TestApplyOptions_Pagination(t *testing.T) {
	db := openQueryDB(t)

	opts := append([]store.Option{store.WithOrderAsc("id")}, store.WithPagination(2, 1)...)
	rows := findRows(t, db, opts...)
	if len(rows) != 2 || rows[0].ID != 2 || rows[1].ID != 3 {
		t.Fatalf("unexpected page: %+v", rows)
	}
}

func TestApplyOptions_Combined(t *testing.T) {
	db := openQueryDB(t)

	rows := findRows(t, db,
		store.WithEnabled(true),
		store.WithOrderDesc("id"),
		store.WithLimit(2),
	)
	if len(rows) != 2 || rows[0].ID != 4 || rows[1].ID != 3 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestApplyConditions_IgnoresPagination(t *testing.T) {
	db := openQueryDB(t)

	var count int64
	q := ApplyConditions(
		db.Session(context.Background()).Table("query_rows"),
		store.WithEnabled(true),
		store.WithLimit(1),
	)
	if err := q.Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 enabled rows, got %d", count)
	}
}
