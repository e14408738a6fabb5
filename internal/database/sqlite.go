package database

import (
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

// sqliteDriver is go-sqlite3 with a Unicode aware lower(). The built-in
// lower() only folds ASCII, so "ÉLEC" and "élec" would compare unequal.
const sqliteDriver = "sqlite3_bdt"

func init() {
	sql.Register(sqliteDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("lower", foldLower, true)
		},
	})
	sqlx.BindDriver(sqliteDriver, sqlx.QUESTION)
}

func foldLower(v interface{}) interface{} {
	switch s := v.(type) {
	case string:
		return strings.ToLower(s)
	case []byte:
		// NULL arrives as a nil slice
		if s == nil {
			return nil
		}
		return strings.ToLower(string(s))
	}
	return v
}
