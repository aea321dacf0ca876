// Package postgres provides a PostgreSQL implementation of store.Store
// using pgx/v5. Claims run inside real transactions and lean on
// FOR UPDATE SKIP LOCKED, so concurrent scheduler instances never block on
// or double-claim the same row.
package postgres
