package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/bobo-le/typeorm-scheduler/job"
)

var _ job.Store = (*Store)(nil)

// Store is a SQLite implementation of store.Store.
type Store struct {
	db     *sql.DB
	table  string
	fields job.FieldMap
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithTable sets the jobs table name. Defaults to "scheduler_jobs".
func WithTable(name string) Option {
	return func(s *Store) {
		s.table = name
	}
}

// WithFieldMap overrides the column names of the scheduling fields.
func WithFieldMap(fm job.FieldMap) Option {
	return func(s *Store) {
		s.fields = fm.OrDefaults()
	}
}

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open creates a store over a SQLite file path, or an in-memory database
// for ":memory:". The pool is capped at one connection: SQLite allows a
// single writer anyway, and a lone connection keeps transactions from
// tripping over SQLITE_BUSY.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("scheduler/sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA synchronous = NORMAL`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("scheduler/sqlite: %s: %w", pragma, err)
		}
	}

	return New(db, opts...), nil
}

// New creates a store over an existing *sql.DB. The caller keeps ownership
// of the handle and its pool settings.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		table:  "scheduler_jobs",
		fields: job.DefaultFieldMap(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced usage.
func (s *Store) DB() *sql.DB {
	return s.db
}
