package redis

import (
	"context"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/bobo-le/typeorm-scheduler/job"
)

var (
	_ job.Store   = (*Store)(nil)
	_ job.Claimer = (*Store)(nil)
)

// Store is a Redis implementation of store.Store.
type Store struct {
	client goredis.UniversalClient
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a new Redis store. The caller owns the client lifecycle
// unless Close is used.
func New(client goredis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate is a no-op; Redis needs no schema.
func (s *Store) Migrate(_ context.Context) error {
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Client returns the underlying client for advanced usage.
func (s *Store) Client() goredis.UniversalClient {
	return s.client
}
