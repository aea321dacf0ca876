package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	scheduler "github.com/bobo-le/typeorm-scheduler"
	"github.com/bobo-le/typeorm-scheduler/id"
	"github.com/bobo-le/typeorm-scheduler/job"
)

// CreateJob persists a new job row.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	m := toJobModel(j)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		if isDuplicateKey(err) {
			return scheduler.ErrJobAlreadyExists
		}
		return fmt.Errorf("scheduler/bun: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	m := new(jobModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", jobID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, scheduler.ErrJobNotFound
		}
		return nil, fmt.Errorf("scheduler/bun: get job: %w", err)
	}
	return fromJobModel(m)
}

// SetSleepUntil writes the wake-up column of one row; nil stores NULL.
func (s *Store) SetSleepUntil(ctx context.Context, jobID id.JobID, until *time.Time) error {
	return setSleepUntil(ctx, s.db, jobID, until)
}

// DeleteJob removes a job by ID.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	return deleteJob(ctx, s.db, jobID)
}

// CountJobs returns the number of rows in the given queue.
func (s *Store) CountJobs(ctx context.Context, queue string) (int64, error) {
	count, err := s.db.NewSelect().
		Model((*jobModel)(nil)).
		Where("queue = ?", queue).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("scheduler/bun: count jobs: %w", err)
	}
	return int64(count), nil
}

// Transact runs fn inside a database transaction. Any error from fn rolls
// the transaction back and is returned unchanged.
func (s *Store) Transact(ctx context.Context, fn func(tx job.Tx) error) error {
	return s.db.RunInTx(ctx, nil, func(_ context.Context, tx bun.Tx) error {
		return fn(&bunTx{tx: tx})
	})
}

var _ job.Tx = (*bunTx)(nil)

// bunTx exposes the claim primitives inside one transaction.
type bunTx struct {
	tx bun.Tx
}

// FindDue returns the earliest-due row in the queue, or nil when none is
// due. SKIP LOCKED steps over rows another transaction is claiming.
func (t *bunTx) FindDue(ctx context.Context, queue string, now time.Time) (*job.Job, error) {
	m := new(jobModel)
	err := t.tx.NewSelect().Model(m).
		Where("queue = ?", queue).
		Where("sleep_until IS NOT NULL").
		Where("sleep_until <= ?", now).
		Order("sleep_until ASC").
		Limit(1).
		For("UPDATE SKIP LOCKED").
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scheduler/bun: find due: %w", err)
	}
	return fromJobModel(m)
}

func (t *bunTx) SetSleepUntil(ctx context.Context, jobID id.JobID, until *time.Time) error {
	return setSleepUntil(ctx, t.tx, jobID, until)
}

func (t *bunTx) Delete(ctx context.Context, jobID id.JobID) error {
	return deleteJob(ctx, t.tx, jobID)
}

// setSleepUntil and deleteJob run against either the root DB or a
// transaction through bun.IDB.
func setSleepUntil(ctx context.Context, db bun.IDB, jobID id.JobID, until *time.Time) error {
	res, err := db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("sleep_until = ?", until).
		Set("updated_at = NOW()").
		Where("id = ?", jobID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("scheduler/bun: set sleep until: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return scheduler.ErrJobNotFound
	}
	return nil
}

func deleteJob(ctx context.Context, db bun.IDB, jobID id.JobID) error {
	res, err := db.NewDelete().
		Model((*jobModel)(nil)).
		Where("id = ?", jobID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("scheduler/bun: delete job: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return scheduler.ErrJobNotFound
	}
	return nil
}
