package store

import (
	"database/sql"
	"database/sql/driver"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/domex/internal/textfold"
)

// sqliteDriver is go-sqlite3 with the folding functions registered on
// every connection.
const sqliteDriver = "sqlite3_domex"

var registerOnce sync.Once

func registerSQLite() {
	registerOnce.Do(func() {
		sql.Register(sqliteDriver, &sqlite3.SQLiteDriver{ConnectHook: setupConn})
	})
}

// foldFuncs are the SQL functions the SQLite dialect folds text with.
var foldFuncs = map[string]func(string) string{
	"unaccent":    textfold.Unaccent,
	"domex_fold":  textfold.Fold,
	"domex_lower": textfold.Lower,
}

func setupConn(conn *sqlite3.SQLiteConn) error {
	for name, fn := range foldFuncs {
		if err := conn.RegisterFunc(name, textFunc(fn), true); err != nil {
			return err
		}
	}
	// LIKE must stay case sensitive, ilike folds both sides instead
	_, err := conn.Exec("PRAGMA case_sensitive_like = ON", []driver.Value{})
	return err
}

// textFunc adapts fn to SQL arguments: NULL in, NULL out. go-sqlite3
// passes NULL to an interface argument as a nil []byte.
func textFunc(fn func(string) string) func(any) any {
	return func(v any) any {
		switch x := v.(type) {
		case string:
			return fn(x)
		case []byte:
			if x == nil {
				return nil
			}
			return fn(string(x))
		}
		return v
	}
}
