package toolstore

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations("sqlite")
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(migrations) < 1 {
		t.Fatalf("expected at least 1 migration, got %d", len(migrations))
	}
	if migrations[0].ID != "0001_create_tools" {
		t.Fatalf("expected first migration to be 0001_create_tools, got %q", migrations[0].ID)
	}
}

func TestMigratorUpDownStatus(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	defer db.Close()

	m, err := NewMigrator(db, "sqlite")
	if err != nil {
		t.Fatalf("NewMigrator() error = %v", err)
	}

	ctx := context.Background()
	applied, err := m.Up(ctx, 0)
	if err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if len(applied) != 1 || applied[0] != "0001_create_tools" {
		t.Fatalf("expected one applied migration, got %v", applied)
	}

	if _, err := db.ExecContext(ctx, `INSERT INTO tools (id, name, created_at, updated_at) VALUES ('t1', 'echo', '2024-01-01', '2024-01-01')`); err != nil {
		t.Fatalf("insert into migrated table: %v", err)
	}

	appliedList, pending, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(appliedList) != 1 || len(pending) != 0 {
		t.Fatalf("expected 1 applied, 0 pending, got %d/%d", len(appliedList), len(pending))
	}

	rolled, err := m.Down(ctx, 1)
	if err != nil {
		t.Fatalf("Down() error = %v", err)
	}
	if len(rolled) != 1 || rolled[0] != "0001_create_tools" {
		t.Fatalf("expected one rolled back migration, got %v", rolled)
	}

	if _, err := db.ExecContext(ctx, `SELECT 1 FROM tools`); err == nil {
		t.Fatalf("expected tools table to be dropped after Down()")
	}
}
