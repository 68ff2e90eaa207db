// Package store runs domain searches against a SQL database.
//
// A Store materializes a registry as tables, loads datasets into them and
// searches them with the SQL the querysql builder generates. It also
// implements optimize.Env, so that hierarchy operators and name searches
// are resolved against the same database.
//
// # Tables
//
//   - one table per model, a column per stored field
//   - one bridge table per many2many relation table
//   - ir_attachment for binary fields stored as attachments
//
// Translated fields hold a JSON object keyed by language. Unset values,
// false booleans included, are NULL.
//
// # Backends
//
// SQLite (github.com/mattn/go-sqlite3) is the default. Every connection
// gets the unaccent, domex_fold and domex_lower functions and
// case-sensitive LIKE:
//
//   - WAL mode, NORMAL synchronous, 5-second busy timeout
//   - a single open connection
//
// PostgreSQL goes through the pgx stdlib driver and needs the unaccent
// extension when accent folding is on.
//
// # Tracing
//
// Every Search logs with a search_id attribute, a UUIDv7 by default.
package store
