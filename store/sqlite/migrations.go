package sqlite

import (
	"context"
	"fmt"
)

// Migrate creates the jobs table and its due-scan index if they do not
// exist. The schema is generated rather than embedded because the
// scheduling column names come from the configured field map.
func (s *Store) Migrate(ctx context.Context) error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %q (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL DEFAULT '',
			queue       TEXT NOT NULL DEFAULT '',
			payload     BLOB,
			%q          INTEGER,
			%q          TEXT NOT NULL DEFAULT '',
			%q          INTEGER,
			%q          INTEGER NOT NULL DEFAULT 0,
			created_at  INTEGER NOT NULL,
			updated_at  INTEGER NOT NULL
		)`,
		s.table,
		s.fields.SleepUntil, s.fields.Interval, s.fields.RepeatUntil, s.fields.AutoRemove,
	)
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("scheduler/sqlite: create table: %w", err)
	}

	index := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %q ON %q (queue, %q)`,
		"idx_"+s.table+"_due", s.table, s.fields.SleepUntil,
	)
	if _, err := s.db.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("scheduler/sqlite: create index: %w", err)
	}

	s.logger.Debug("migrated sqlite schema", "table", s.table)
	return nil
}
