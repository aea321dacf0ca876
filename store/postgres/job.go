package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	scheduler "github.com/bobo-le/typeorm-scheduler"
	"github.com/bobo-le/typeorm-scheduler/id"
	"github.com/bobo-le/typeorm-scheduler/job"
)

// CreateJob persists a new job row.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	query := fmt.Sprintf(`
		INSERT INTO %q (id, name, queue, payload, %q, %q, %q, %q, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.table,
		s.fields.SleepUntil, s.fields.Interval, s.fields.RepeatUntil, s.fields.AutoRemove,
	)
	_, err := s.pool.Exec(ctx, query,
		j.ID.String(), j.Name, j.Queue, j.Payload,
		j.SleepUntil, j.Interval, j.RepeatUntil, j.AutoRemove,
		j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return scheduler.ErrJobAlreadyExists
		}
		return fmt.Errorf("scheduler/postgres: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM %q WHERE id = $1`, s.columns(), s.table)
	j, err := scanJob(s.pool.QueryRow(ctx, query, jobID.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, scheduler.ErrJobNotFound
		}
		return nil, fmt.Errorf("scheduler/postgres: get job: %w", err)
	}
	return j, nil
}

// SetSleepUntil writes the wake-up column of one row; nil stores NULL.
func (s *Store) SetSleepUntil(ctx context.Context, jobID id.JobID, until *time.Time) error {
	query := fmt.Sprintf(
		`UPDATE %q SET %q = $2, updated_at = NOW() WHERE id = $1`,
		s.table, s.fields.SleepUntil,
	)
	tag, err := s.pool.Exec(ctx, query, jobID.String(), until)
	if err != nil {
		return fmt.Errorf("scheduler/postgres: set sleep until: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return scheduler.ErrJobNotFound
	}
	return nil
}

// DeleteJob removes a job by ID.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	query := fmt.Sprintf(`DELETE FROM %q WHERE id = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, jobID.String())
	if err != nil {
		return fmt.Errorf("scheduler/postgres: delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return scheduler.ErrJobNotFound
	}
	return nil
}

// CountJobs returns the number of rows in the given queue.
func (s *Store) CountJobs(ctx context.Context, queue string) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %q WHERE queue = $1`, s.table)
	var n int64
	if err := s.pool.QueryRow(ctx, query, queue).Scan(&n); err != nil {
		return 0, fmt.Errorf("scheduler/postgres: count jobs: %w", err)
	}
	return n, nil
}

// Transact runs fn inside a database transaction. Any error from fn rolls
// the transaction back and is returned unchanged.
func (s *Store) Transact(ctx context.Context, fn func(tx job.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(&pgxTx{store: s, tx: tx})
	})
}

var _ job.Tx = (*pgxTx)(nil)

// pgxTx exposes the claim primitives inside one transaction.
type pgxTx struct {
	store *Store
	tx    pgx.Tx
}

// FindDue returns the earliest-due row in the queue, or nil when none is
// due. SKIP LOCKED steps over rows another transaction is claiming, so
// concurrent claimers spread out instead of queueing.
func (t *pgxTx) FindDue(ctx context.Context, queue string, now time.Time) (*job.Job, error) {
	f := t.store.fields
	query := fmt.Sprintf(`
		SELECT %s FROM %q
		WHERE queue = $1 AND %q IS NOT NULL AND %q <= $2
		ORDER BY %q ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`,
		t.store.columns(), t.store.table,
		f.SleepUntil, f.SleepUntil, f.SleepUntil,
	)
	j, err := scanJob(t.tx.QueryRow(ctx, query, queue, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scheduler/postgres: find due: %w", err)
	}
	return j, nil
}

func (t *pgxTx) SetSleepUntil(ctx context.Context, jobID id.JobID, until *time.Time) error {
	query := fmt.Sprintf(
		`UPDATE %q SET %q = $2, updated_at = NOW() WHERE id = $1`,
		t.store.table, t.store.fields.SleepUntil,
	)
	tag, err := t.tx.Exec(ctx, query, jobID.String(), until)
	if err != nil {
		return fmt.Errorf("scheduler/postgres: tx set sleep until: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return scheduler.ErrJobNotFound
	}
	return nil
}

func (t *pgxTx) Delete(ctx context.Context, jobID id.JobID) error {
	query := fmt.Sprintf(`DELETE FROM %q WHERE id = $1`, t.store.table)
	tag, err := t.tx.Exec(ctx, query, jobID.String())
	if err != nil {
		return fmt.Errorf("scheduler/postgres: tx delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return scheduler.ErrJobNotFound
	}
	return nil
}

// columns returns the SELECT list in scanJob order.
func (s *Store) columns() string {
	return fmt.Sprintf(`id, name, queue, payload, %q, %q, %q, %q, created_at, updated_at`,
		s.fields.SleepUntil, s.fields.Interval, s.fields.RepeatUntil, s.fields.AutoRemove)
}

func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		j     job.Job
		rawID string
	)
	err := row.Scan(&rawID, &j.Name, &j.Queue, &j.Payload,
		&j.SleepUntil, &j.Interval, &j.RepeatUntil, &j.AutoRemove,
		&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}

	j.ID, err = id.ParseJobID(rawID)
	if err != nil {
		return nil, err
	}
	return &j, nil
}
