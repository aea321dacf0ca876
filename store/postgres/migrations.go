package postgres

import (
	"context"
	"fmt"
)

// Migrate creates the jobs table and its due-scan index if they do not
// exist. The DDL is generated in code because the scheduling column names
// come from the configured field map, so there is nothing static to embed.
func (s *Store) Migrate(ctx context.Context) error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %q (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL DEFAULT '',
			queue       TEXT NOT NULL DEFAULT '',
			payload     BYTEA,
			%q          TIMESTAMPTZ,
			%q          TEXT NOT NULL DEFAULT '',
			%q          TIMESTAMPTZ,
			%q          BOOLEAN NOT NULL DEFAULT FALSE,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		s.table,
		s.fields.SleepUntil, s.fields.Interval, s.fields.RepeatUntil, s.fields.AutoRemove,
	)
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("scheduler/postgres: create table: %w", err)
	}

	// Partial index: inert rows never match the due scan, so keep them out.
	index := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %q ON %q (queue, %q) WHERE %q IS NOT NULL`,
		"idx_"+s.table+"_due", s.table, s.fields.SleepUntil, s.fields.SleepUntil,
	)
	if _, err := s.pool.Exec(ctx, index); err != nil {
		return fmt.Errorf("scheduler/postgres: create index: %w", err)
	}

	s.logger.Debug("migrated postgres schema", "table", s.table)
	return nil
}
