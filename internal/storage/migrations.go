package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type migration struct {
	version int
	name    string
	up      func(ctx context.Context, tx *sql.Tx) error
}

// schema lists every migration in version order. Versions are never reused.
var schema = []migration{
	{version: 1, name: "kv_store", up: migrateV001},
	{version: 2, name: "audit_log", up: migrateV002},
}

var journalModes = map[string]bool{
	"WAL": true, "DELETE": true, "TRUNCATE": true,
	"PERSIST": true, "MEMORY": true, "OFF": true,
}

// MigrationRunner brings a SQLite database up to the latest schema.
type MigrationRunner struct {
	db          *sql.DB
	journalMode string
	migrations  []migration
}

func NewMigrationRunner(db *sql.DB) *MigrationRunner {
	return &MigrationRunner{db: db, journalMode: "WAL", migrations: schema}
}

// WithJournalMode overrides the SQLite journal mode (default WAL).
func (r *MigrationRunner) WithJournalMode(mode string) *MigrationRunner {
	if mode != "" {
		r.journalMode = strings.ToUpper(mode)
	}
	return r
}

// Run is RunContext with a background context.
func (r *MigrationRunner) Run() error {
	return r.RunContext(context.Background())
}

// RunContext configures the connection pragmas and applies every migration
// not yet recorded in schema_migrations, each in its own transaction.
func (r *MigrationRunner) RunContext(ctx context.Context) error {
	if !journalModes[r.journalMode] {
		return fmt.Errorf("unsupported journal mode %q", r.journalMode)
	}
	pragmas := []string{
		"PRAGMA journal_mode = " + r.journalMode,
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := r.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}

	if _, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return err
	}
	for _, m := range r.migrations {
		if applied[m.version] {
			continue
		}
		if err := r.apply(ctx, m); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// SchemaVersion reports the highest applied migration, or 0 on a fresh
// database.
func (r *MigrationRunner) SchemaVersion(ctx context.Context) (int, error) {
	var tables int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'",
	).Scan(&tables); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if tables == 0 {
		return 0, nil
	}

	var version sql.NullInt64
	if err := r.db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(version.Int64), nil
}

func (r *MigrationRunner) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (r *MigrationRunner) apply(ctx context.Context, m migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := m.up(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		m.version, m.name,
	); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}

func execAll(ctx context.Context, tx *sql.Tx, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
