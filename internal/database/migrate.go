package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const migrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	applied_at %s NOT NULL
)`

// AppliedVersion returns the highest applied migration version, 0 when the
// schema is empty.
func AppliedVersion(ctx context.Context, db *sqlx.DB) (int, error) {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return 0, err
	}
	var version int
	if err := db.GetContext(ctx, &version, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations"); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func ensureMigrationsTable(ctx context.Context, db *sqlx.DB) error {
	d := DialectFor(db.DriverName())
	if _, err := db.ExecContext(ctx, fmt.Sprintf(migrationsTable, dialectTypes[d].Time)); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

// RunMigrations applies every pending migration, each in its own
// transaction, and returns how many were applied.
func RunMigrations(ctx context.Context, db *sqlx.DB) (int, error) {
	return runMigrations(ctx, db, Migrations)
}

func runMigrations(ctx context.Context, db *sqlx.DB, migrations []Migration) (int, error) {
	current, err := AppliedVersion(ctx, db)
	if err != nil {
		return 0, err
	}

	d := DialectFor(db.DriverName())
	applied := 0
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return applied, err
		}
		for _, stmt := range m.render(d) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return applied, fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			tx.Rebind("INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)"),
			m.Version, m.Name, time.Now().UTC()); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}
