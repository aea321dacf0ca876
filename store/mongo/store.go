package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/bobo-le/typeorm-scheduler/job"
)

var (
	_ job.Store   = (*Store)(nil)
	_ job.Claimer = (*Store)(nil)
)

// Store is a MongoDB implementation of store.Store. The caller owns the
// client lifecycle; Store never closes it.
type Store struct {
	db         *mongod.Database
	collection string
	fields     job.FieldMap
	logger     *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithCollection sets the jobs collection name. Defaults to
// "scheduler_jobs".
func WithCollection(name string) Option {
	return func(s *Store) {
		s.collection = name
	}
}

// WithFieldMap overrides the document field names of the scheduling
// fields.
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

// New creates a new MongoDB store over an existing database handle.
func New(db *mongod.Database, opts ...Option) *Store {
	s := &Store{
		db:         db,
		collection: "scheduler_jobs",
		fields:     job.DefaultFieldMap(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// col returns the jobs collection.
func (s *Store) col() *mongod.Collection {
	return s.db.Collection(s.collection)
}

// Migrate creates the due-scan index.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.col().Indexes().CreateMany(ctx, []mongod.IndexModel{
		{Keys: bson.D{
			{Key: "queue", Value: 1},
			{Key: s.fields.SleepUntil, Value: 1},
		}},
	})
	if err != nil {
		return fmt.Errorf("scheduler/mongo: migrate indexes: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// Close is a no-op because the caller owns the client lifecycle.
func (s *Store) Close() error {
	return nil
}

// isNoDocuments returns true when err indicates no MongoDB documents found.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// isDuplicateKey checks if a MongoDB error is a duplicate key violation.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "duplicate key") ||
		strings.Contains(err.Error(), "E11000")
}
