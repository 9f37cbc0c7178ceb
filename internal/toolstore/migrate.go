package toolstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Migration is one embedded schema change, identified by a lexicographically
// sortable ID (its filename stem).
type Migration struct {
	ID      string
	UpSQL   string
	DownSQL string
}

// AppliedMigration records when a migration was applied.
type AppliedMigration struct {
	ID        string
	AppliedAt time.Time
}

// Migrator applies the Tool Store's embedded schema migrations against a
// SQL database, adapted from the teacher's session-store migrator
// (internal/sessions/migrate.go): an embedded up/down SQL pair per ID, a
// schema_migrations bookkeeping table, and one transaction per migration.
type Migrator struct {
	db         *sql.DB
	migrations []Migration
	placeholder func(int) string
}

// NewMigrator builds a Migrator for db using the migration set for the
// given dialect ("postgres" or "sqlite").
func NewMigrator(db *sql.DB, dialectName string) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("toolstore: db is required")
	}
	migrations, err := loadMigrations(dialectName)
	if err != nil {
		return nil, err
	}
	ph := func(n int) string { return fmt.Sprintf("$%d", n) }
	if dialectName == "sqlite" {
		ph = func(int) string { return "?" }
	}
	return &Migrator{db: db, migrations: migrations, placeholder: ph}, nil
}

// EnsureSchema creates the schema_migrations bookkeeping table if absent.
func (m *Migrator) EnsureSchema(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("toolstore: create schema_migrations: %w", err)
	}
	return nil
}

func (m *Migrator) appliedIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("toolstore: list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("toolstore: scan applied migration: %w", err)
		}
		applied[id] = true
	}
	return applied, rows.Err()
}

func (m *Migrator) appliedList(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id, applied_at FROM schema_migrations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("toolstore: list applied migrations: %w", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var a AppliedMigration
		if err := rows.Scan(&a.ID, &a.AppliedAt); err != nil {
			return nil, fmt.Errorf("toolstore: scan applied migration: %w", err)
		}
		applied = append(applied, a)
	}
	return applied, rows.Err()
}

func (m *Migrator) byID(id string) (Migration, bool) {
	for _, migration := range m.migrations {
		if migration.ID == id {
			return migration, true
		}
	}
	return Migration{}, false
}

// Up applies pending migrations in ID order. If steps <= 0, applies all.
func (m *Migrator) Up(ctx context.Context, steps int) ([]string, error) {
	if err := m.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	applied, err := m.appliedIDs(ctx)
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, migration := range m.migrations {
		if !applied[migration.ID] {
			pending = append(pending, migration)
		}
	}
	if steps > 0 && steps < len(pending) {
		pending = pending[:steps]
	}

	var appliedIDs []string
	for _, migration := range pending {
		if strings.TrimSpace(migration.UpSQL) == "" {
			return appliedIDs, fmt.Errorf("toolstore: missing up migration for %s", migration.ID)
		}
		if err := m.runInTx(ctx, migration.UpSQL, fmt.Sprintf(
			`INSERT INTO schema_migrations (id, applied_at) VALUES (%s, %s)`,
			m.placeholder(1), m.placeholder(2),
		), migration.ID, time.Now().UTC()); err != nil {
			return appliedIDs, fmt.Errorf("toolstore: apply migration %s: %w", migration.ID, err)
		}
		appliedIDs = append(appliedIDs, migration.ID)
	}
	return appliedIDs, nil
}

// Down rolls back the most recently applied steps migrations (default 1).
func (m *Migrator) Down(ctx context.Context, steps int) ([]string, error) {
	if steps <= 0 {
		steps = 1
	}
	if err := m.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	applied, err := m.appliedList(ctx)
	if err != nil {
		return nil, err
	}
	if len(applied) == 0 {
		return nil, nil
	}
	if steps > len(applied) {
		steps = len(applied)
	}
	toRollback := applied[len(applied)-steps:]

	var rolled []string
	for i := len(toRollback) - 1; i >= 0; i-- {
		id := toRollback[i].ID
		migration, ok := m.byID(id)
		if !ok {
			return rolled, fmt.Errorf("toolstore: migration %s not found", id)
		}
		if strings.TrimSpace(migration.DownSQL) == "" {
			return rolled, fmt.Errorf("toolstore: missing down migration for %s", id)
		}
		if err := m.runInTx(ctx, migration.DownSQL, fmt.Sprintf(
			`DELETE FROM schema_migrations WHERE id = %s`, m.placeholder(1),
		), id); err != nil {
			return rolled, fmt.Errorf("toolstore: rollback migration %s: %w", id, err)
		}
		rolled = append(rolled, id)
	}
	return rolled, nil
}

func (m *Migrator) runInTx(ctx context.Context, ddl, bookkeeping string, bookkeepingArgs ...any) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("exec: %w", err)
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, bookkeepingArgs...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("bookkeeping: %w", err)
	}
	return tx.Commit()
}

// Status reports which migrations have been applied and which are pending.
func (m *Migrator) Status(ctx context.Context) ([]AppliedMigration, []Migration, error) {
	if err := m.EnsureSchema(ctx); err != nil {
		return nil, nil, err
	}
	applied, err := m.appliedList(ctx)
	if err != nil {
		return nil, nil, err
	}
	appliedSet := map[string]bool{}
	for _, a := range applied {
		appliedSet[a.ID] = true
	}
	var pending []Migration
	for _, migration := range m.migrations {
		if !appliedSet[migration.ID] {
			pending = append(pending, migration)
		}
	}
	return applied, pending, nil
}

func loadMigrations(dialectName string) ([]Migration, error) {
	root := "migrations/" + dialectName
	paths, err := fs.Glob(migrationsFS, root+"/*.sql")
	if err != nil {
		return nil, fmt.Errorf("toolstore: list migrations: %w", err)
	}

	entries := map[string]*Migration{}
	for _, path := range paths {
		base := strings.TrimPrefix(path, root+"/")
		var suffix string
		switch {
		case strings.HasSuffix(base, ".up.sql"):
			suffix = ".up.sql"
		case strings.HasSuffix(base, ".down.sql"):
			suffix = ".down.sql"
		default:
			continue
		}
		id := strings.TrimSuffix(base, suffix)
		entry := entries[id]
		if entry == nil {
			entry = &Migration{ID: id}
			entries[id] = entry
		}
		data, err := migrationsFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("toolstore: read migration %s: %w", path, err)
		}
		if suffix == ".up.sql" {
			entry.UpSQL = string(data)
		} else {
			entry.DownSQL = string(data)
		}
	}

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	migrations := make([]Migration, 0, len(ids))
	for _, id := range ids {
		migrations = append(migrations, *entries[id])
	}
	return migrations, nil
}
