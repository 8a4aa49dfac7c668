package database

import (
	"testing"

	"cafeteria/internal/model"
)

func TestInitSQLiteMigrates(t *testing.T) {
	db, err := InitSQLite(":memory:", "silent")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer Close(db)

	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for _, table := range []any{
		&model.EmployeeAccount{},
		&model.LedgerTransaction{},
		&model.Order{},
		&model.OrderItem{},
		&model.OutboxMessage{},
		&model.Restaurant{},
		&model.MenuItem{},
	} {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("expected table for %T", table)
		}
	}
}

func TestMigrateIsIdempotentOnFile(t *testing.T) {
	path := t.TempDir() + "/cafeteria.db"
	db, err := InitSQLite(path, "silent")
	if err != nil {
		t.Fatalf("open sqlite file: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// 再次迁移应当幂等
	if err := Migrate(db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if err := Close(db); err != nil {
		t.Fatalf("close: %v", err)
	}
}
