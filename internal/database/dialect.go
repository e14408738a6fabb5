package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Dialect identifies a supported SQL backend.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite3"
)

// DialectFor maps a configured driver name to a Dialect. Unknown names fall
// back to PostgreSQL.
func DialectFor(driver string) Dialect {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "mysql", "mariadb":
		return MySQL
	case "sqlite", "sqlite3", sqliteDriver:
		return SQLite
	default:
		return Postgres
	}
}

// DriverName returns the database/sql driver registered for d.
func (d Dialect) DriverName() string {
	if d == SQLite {
		return sqliteDriver
	}
	return string(d)
}

// SupportsReturning reports whether INSERT ... RETURNING is used to fetch
// generated ids.
func (d Dialect) SupportsReturning() bool { return d == Postgres }

// InsertReturningID executes an INSERT written with ? placeholders and
// returns the generated id.
func InsertReturningID(ctx context.Context, ext sqlx.ExtContext, query string, args ...interface{}) (int64, error) {
	dialect := DialectFor(ext.DriverName())
	if dialect.SupportsReturning() {
		var id int64
		q := ext.Rebind(query + " RETURNING id")
		if err := sqlx.GetContext(ctx, ext, &id, q, args...); err != nil {
			return 0, err
		}
		return id, nil
	}

	res, err := ext.ExecContext(ctx, ext.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// LikePattern builds a case-insensitive substring pattern for term. The
// caller compares it against LOWER(column).
func LikePattern(term string) string {
	return "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
}

// InClause returns "?, ?, ?" for n placeholders.
func InClause(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
