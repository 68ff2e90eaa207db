package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/roach88/domex/internal/optimize"
	"github.com/roach88/domex/internal/querysql"
	"github.com/roach88/domex/internal/schema"
)

// ErrNotMigrated is returned by operations that need the registry before
// Migrate was called.
var ErrNotMigrated = errors.New("store has no registry, call Migrate first")

// Store searches records in a SQL database.
//
// Thread-safety: a migrated Store is safe for concurrent use.
type Store struct {
	db      *sql.DB
	dialect querysql.Dialect

	registry  *schema.Registry
	builder   *querysql.Builder
	optimizer *optimize.Optimizer

	ids      SearchIDGenerator
	logger   *slog.Logger
	unaccent bool
	lang     string
	strict   bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger, slog.Default() otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithSearchIDs sets the generator of search ids, UUIDv7 otherwise.
//
// Use testutil.NewSequentialSearchIDs() for reproducible logs.
func WithSearchIDs(ids SearchIDGenerator) Option {
	return func(s *Store) {
		s.ids = ids
	}
}

// WithUnaccent turns accent folding of ilike on or off. Default: on.
func WithUnaccent(on bool) Option {
	return func(s *Store) {
		s.unaccent = on
	}
}

// WithLang sets the language of translated columns. Default: en_US.
func WithLang(lang string) Option {
	return func(s *Store) {
		s.lang = lang
	}
}

// WithStrict makes non-searchable fields an error instead of a match-all.
func WithStrict(strict bool) Option {
	return func(s *Store) {
		s.strict = strict
	}
}

func newStore(db *sql.DB, dialect querysql.Dialect, opts []Option) *Store {
	s := &Store{
		db:       db,
		dialect:  dialect,
		ids:      UUIDv7Generator{},
		logger:   slog.Default(),
		unaccent: true,
		lang:     "en_US",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates or opens a SQLite database at the given path, ":memory:"
// included.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//
// The folding functions and case-sensitive LIKE are set up by the driver
// on every connection.
func Open(path string, opts ...Option) (*Store, error) {
	registerSQLite()
	db, err := sql.Open(sqliteDriver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time; an in-memory database
	// also lives and dies with its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	return newStore(db, querysql.SQLite{}, opts), nil
}

// OpenPostgres connects to a PostgreSQL database through pgx.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return newStore(db, querysql.Postgres{}, opts), nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL dialect of the backend.
func (s *Store) Dialect() querysql.Dialect {
	return s.dialect
}

// Builder returns the SQL builder searches use, nil before Migrate.
func (s *Store) Builder() *querysql.Builder {
	return s.builder
}

// Optimizer returns the optimizer searches use, nil before Migrate. Its
// environment is the store itself.
func (s *Store) Optimizer() *optimize.Optimizer {
	return s.optimizer
}

// setRegistry wires the builder and the optimizer for reg.
func (s *Store) setRegistry(reg *schema.Registry) {
	s.registry = reg
	b := querysql.NewBuilder(reg, s.dialect)
	b.Unaccent = s.unaccent
	b.Lang = s.lang
	b.Logger = s.logger
	s.builder = b
	s.optimizer = optimize.New(s, s.logger)
	s.optimizer.Strict = s.strict
}

func (s *Store) model(name string) (*schema.Model, error) {
	if s.registry == nil {
		return nil, ErrNotMigrated
	}
	m, ok := s.registry.Model(name)
	if !ok {
		return nil, fmt.Errorf("unknown model %q", name)
	}
	return m, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
