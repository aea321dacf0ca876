// Package store defines the aggregate persistence interface. The scheduling
// core depends only on job.Store; the aggregate adds lifecycle operations a
// deployed backend needs. Backends: Postgres (pgx), Bun, SQLite, Redis,
// Mongo, and Memory.
package store

import (
	"context"

	"github.com/bobo-le/typeorm-scheduler/job"
)

// Store is the full persistence interface a backend implements.
type Store interface {
	job.Store

	// Migrate creates or updates the backing schema.
	Migrate(ctx context.Context) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
