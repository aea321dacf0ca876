package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	scheduler "github.com/bobo-le/typeorm-scheduler"
	"github.com/bobo-le/typeorm-scheduler/id"
	"github.com/bobo-le/typeorm-scheduler/job"
)

// CreateJob persists a new job row.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	query := fmt.Sprintf(`
		INSERT INTO %q (id, name, queue, payload, %q, %q, %q, %q, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.table,
		s.fields.SleepUntil, s.fields.Interval, s.fields.RepeatUntil, s.fields.AutoRemove,
	)
	_, err := s.db.ExecContext(ctx, query,
		j.ID.String(), j.Name, j.Queue, j.Payload,
		encodeTime(j.SleepUntil), j.Interval, encodeTime(j.RepeatUntil), boolToInt(j.AutoRemove),
		j.CreatedAt.UnixNano(), j.UpdatedAt.UnixNano(),
	)
	if err != nil {
		if isDuplicateKey(err) {
			return scheduler.ErrJobAlreadyExists
		}
		return fmt.Errorf("scheduler/sqlite: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM %q WHERE id = ?`,
		s.columns(), s.table,
	)
	j, err := scanJob(s.db.QueryRowContext(ctx, query, jobID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, scheduler.ErrJobNotFound
		}
		return nil, fmt.Errorf("scheduler/sqlite: get job: %w", err)
	}
	return j, nil
}

// SetSleepUntil writes the wake-up column of one row; nil stores NULL.
func (s *Store) SetSleepUntil(ctx context.Context, jobID id.JobID, until *time.Time) error {
	query := fmt.Sprintf(
		`UPDATE %q SET %q = ?, updated_at = ? WHERE id = ?`,
		s.table, s.fields.SleepUntil,
	)
	res, err := s.db.ExecContext(ctx, query,
		encodeTime(until), time.Now().UTC().UnixNano(), jobID.String())
	if err != nil {
		return fmt.Errorf("scheduler/sqlite: set sleep until: %w", err)
	}
	return requireRow(res)
}

// DeleteJob removes a job by ID.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	query := fmt.Sprintf(`DELETE FROM %q WHERE id = ?`, s.table)
	res, err := s.db.ExecContext(ctx, query, jobID.String())
	if err != nil {
		return fmt.Errorf("scheduler/sqlite: delete job: %w", err)
	}
	return requireRow(res)
}

// CountJobs returns the number of rows in the given queue.
func (s *Store) CountJobs(ctx context.Context, queue string) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %q WHERE queue = ?`, s.table)
	var n int64
	if err := s.db.QueryRowContext(ctx, query, queue).Scan(&n); err != nil {
		return 0, fmt.Errorf("scheduler/sqlite: count jobs: %w", err)
	}
	return n, nil
}

// Transact runs fn inside an immediate transaction. Any error from fn rolls
// the transaction back and is returned unchanged.
func (s *Store) Transact(ctx context.Context, fn func(tx job.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("scheduler/sqlite: begin: %w", err)
	}

	if err := fn(&sqliteTx{store: s, tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("scheduler/sqlite: commit: %w", err)
	}
	return nil
}

var _ job.Tx = (*sqliteTx)(nil)

// sqliteTx exposes the claim primitives inside one transaction.
type sqliteTx struct {
	store *Store
	tx    *sql.Tx
}

// FindDue returns the earliest-due row in the queue, or nil when none is
// due. Rows with a NULL wake-up column never match.
func (t *sqliteTx) FindDue(ctx context.Context, queue string, now time.Time) (*job.Job, error) {
	f := t.store.fields
	query := fmt.Sprintf(`
		SELECT %s FROM %q
		WHERE queue = ? AND %q IS NOT NULL AND %q <= ?
		ORDER BY %q ASC
		LIMIT 1`,
		t.store.columns(), t.store.table,
		f.SleepUntil, f.SleepUntil, f.SleepUntil,
	)
	j, err := scanJob(t.tx.QueryRowContext(ctx, query, queue, now.UnixNano()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scheduler/sqlite: find due: %w", err)
	}
	return j, nil
}

func (t *sqliteTx) SetSleepUntil(ctx context.Context, jobID id.JobID, until *time.Time) error {
	query := fmt.Sprintf(
		`UPDATE %q SET %q = ?, updated_at = ? WHERE id = ?`,
		t.store.table, t.store.fields.SleepUntil,
	)
	res, err := t.tx.ExecContext(ctx, query,
		encodeTime(until), time.Now().UTC().UnixNano(), jobID.String())
	if err != nil {
		return fmt.Errorf("scheduler/sqlite: tx set sleep until: %w", err)
	}
	return requireRow(res)
}

func (t *sqliteTx) Delete(ctx context.Context, jobID id.JobID) error {
	query := fmt.Sprintf(`DELETE FROM %q WHERE id = ?`, t.store.table)
	res, err := t.tx.ExecContext(ctx, query, jobID.String())
	if err != nil {
		return fmt.Errorf("scheduler/sqlite: tx delete: %w", err)
	}
	return requireRow(res)
}

// columns returns the SELECT list in scanJob order.
func (s *Store) columns() string {
	return fmt.Sprintf(`id, name, queue, payload, %q, %q, %q, %q, created_at, updated_at`,
		s.fields.SleepUntil, s.fields.Interval, s.fields.RepeatUntil, s.fields.AutoRemove)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*job.Job, error) {
	var (
		j          job.Job
		rawID      string
		sleepUntil sql.NullInt64
		repeat     sql.NullInt64
		autoRemove int64
		created    int64
		updated    int64
	)
	err := row.Scan(&rawID, &j.Name, &j.Queue, &j.Payload,
		&sleepUntil, &j.Interval, &repeat, &autoRemove, &created, &updated)
	if err != nil {
		return nil, err
	}

	j.ID, err = id.ParseJobID(rawID)
	if err != nil {
		return nil, err
	}
	j.SleepUntil = decodeTime(sleepUntil)
	j.RepeatUntil = decodeTime(repeat)
	j.AutoRemove = autoRemove != 0
	j.CreatedAt = time.Unix(0, created).UTC()
	j.UpdatedAt = time.Unix(0, updated).UTC()
	return &j, nil
}

func encodeTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func decodeTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64).UTC()
	return &t
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("scheduler/sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return scheduler.ErrJobNotFound
	}
	return nil
}

func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
