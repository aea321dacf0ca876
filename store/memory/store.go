// Package memory is a fully in-memory store implementation. Safe for
// concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"sync"
	"time"

	scheduler "github.com/bobo-le/typeorm-scheduler"
	"github.com/bobo-le/typeorm-scheduler/id"
	"github.com/bobo-le/typeorm-scheduler/job"
)

// Compile-time interface check.
var _ job.Store = (*Store)(nil)

// Store holds job rows in a mutex-guarded map. Transact holds the store
// lock for the whole transaction function, which makes every transaction
// serializable. That is stronger than the claim protocol needs, and simple.
type Store struct {
	mu   sync.Mutex
	jobs map[string]*job.Job
}

// New returns a new empty Store.
func New() *Store {
	return &Store{jobs: make(map[string]*job.Job)}
}

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// CreateJob persists a new job row.
func (m *Store) CreateJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, exists := m.jobs[key]; exists {
		return scheduler.ErrJobAlreadyExists
	}
	m.jobs[key] = j.Clone()
	return nil
}

// GetJob retrieves a job by ID.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, scheduler.ErrJobNotFound
	}
	return j.Clone(), nil
}

// Transact executes fn while holding the store lock. On error the map is
// restored from a snapshot, so fn commits or rolls back as a unit.
func (m *Store) Transact(_ context.Context, fn func(tx job.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[string]*job.Job, len(m.jobs))
	for k, j := range m.jobs {
		snapshot[k] = j.Clone()
	}

	if err := fn(&memTx{store: m}); err != nil {
		m.jobs = snapshot
		return err
	}
	return nil
}

// SetSleepUntil writes the row's SleepUntil outside any transaction.
func (m *Store) SetSleepUntil(_ context.Context, jobID id.JobID, until *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setSleepUntilLocked(jobID, until)
}

// DeleteJob removes the row outside any transaction.
func (m *Store) DeleteJob(_ context.Context, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLocked(jobID)
}

// CountJobs returns the number of rows in the given queue.
func (m *Store) CountJobs(_ context.Context, queue string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, j := range m.jobs {
		if j.Queue == queue {
			count++
		}
	}
	return count, nil
}

func (m *Store) setSleepUntilLocked(jobID id.JobID, until *time.Time) error {
	j, ok := m.jobs[jobID.String()]
	if !ok {
		return scheduler.ErrJobNotFound
	}
	if until != nil {
		t := *until
		j.SleepUntil = &t
	} else {
		j.SleepUntil = nil
	}
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Store) deleteLocked(jobID id.JobID) error {
	key := jobID.String()
	if _, ok := m.jobs[key]; !ok {
		return scheduler.ErrJobNotFound
	}
	delete(m.jobs, key)
	return nil
}

// memTx operates on the store map directly; the outer Transact already
// holds the lock.
type memTx struct {
	store *Store
}

// FindDue returns the due row with the earliest SleepUntil, or nil. Which
// row wins among equally due ones is unspecified; only "exactly one per
// claim" matters.
func (t *memTx) FindDue(_ context.Context, queue string, now time.Time) (*job.Job, error) {
	var best *job.Job
	for _, j := range t.store.jobs {
		if j.Queue != queue || !j.Due(now) {
			continue
		}
		if best == nil || j.SleepUntil.Before(*best.SleepUntil) {
			best = j
		}
	}
	if best == nil {
		return nil, nil
	}
	return best.Clone(), nil
}

func (t *memTx) SetSleepUntil(_ context.Context, jobID id.JobID, until *time.Time) error {
	return t.store.setSleepUntilLocked(jobID, until)
}

func (t *memTx) Delete(_ context.Context, jobID id.JobID) error {
	return t.store.deleteLocked(jobID)
}
