//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	scheduler "github.com/bobo-le/typeorm-scheduler"
	"github.com/bobo-le/typeorm-scheduler/job"
	"github.com/bobo-le/typeorm-scheduler/lock"
	"github.com/bobo-le/typeorm-scheduler/store/postgres"
)

// setupTestStore creates a Postgres container and returns a connected Store.
func setupTestStore(t *testing.T, opts ...postgres.Option) *postgres.Store {
	t.Helper()

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("scheduler_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	store, err := postgres.New(ctx, connStr, opts...)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if migErr := store.Migrate(ctx); migErr != nil {
		t.Fatalf("migrate: %v", migErr)
	}
	return store
}

func TestStore_Ping(t *testing.T) {
	s := setupTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

func TestStore_MigrateIdempotent(t *testing.T) {
	s := setupTestStore(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}

func TestJobStore_CreateAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	until := time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond)
	j := job.New("test-job", time.Now().UTC().Add(-time.Minute).Truncate(time.Microsecond),
		job.WithQueue("reports"),
		job.WithPayload([]byte(`{"key":"value"}`)),
		job.WithInterval("0 0 * * * *"),
		job.WithRepeatUntil(until),
		job.WithAutoRemove(),
	)
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "test-job" || got.Queue != "reports" {
		t.Fatalf("got name=%q queue=%q", got.Name, got.Queue)
	}
	if got.Interval != "0 0 * * * *" || !got.AutoRemove {
		t.Fatalf("scheduling fields lost: %+v", got)
	}
	if got.SleepUntil == nil || !got.SleepUntil.Equal(*j.SleepUntil) {
		t.Fatalf("sleepUntil = %v, want %v", got.SleepUntil, j.SleepUntil)
	}
	if got.RepeatUntil == nil || !got.RepeatUntil.Equal(until) {
		t.Fatalf("repeatUntil = %v, want %v", got.RepeatUntil, until)
	}

	if err := s.CreateJob(ctx, j); !errors.Is(err, scheduler.ErrJobAlreadyExists) {
		t.Fatalf("duplicate create err = %v, want ErrJobAlreadyExists", err)
	}
}

func TestJobStore_SetSleepUntilNull(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	j := job.New("inertable", time.Now().UTC())
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.SetSleepUntil(ctx, j.ID, nil); err != nil {
		t.Fatalf("set nil: %v", err)
	}
	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SleepUntil != nil {
		t.Fatalf("sleepUntil = %v, want nil", got.SleepUntil)
	}

	ghost := job.New("ghost", time.Now().UTC())
	if err := s.SetSleepUntil(ctx, ghost.ID, nil); !errors.Is(err, scheduler.ErrJobNotFound) {
		t.Fatalf("set on missing row err = %v, want ErrJobNotFound", err)
	}
}

func TestJobStore_FindDueRequiresBothConditions(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	due := job.New("due", now.Add(-time.Minute))
	future := job.New("future", now.Add(time.Hour))
	inert := job.New("inert", now.Add(-time.Hour))
	inert.SleepUntil = nil

	for _, j := range []*job.Job{future, inert, due} {
		if err := s.CreateJob(ctx, j); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	err := s.Transact(ctx, func(tx job.Tx) error {
		found, err := tx.FindDue(ctx, "", now)
		if err != nil {
			return err
		}
		if found == nil {
			t.Fatal("FindDue found nothing")
		}
		if found.ID.String() != due.ID.String() {
			t.Fatalf("FindDue returned %s (%s), want %s", found.ID, found.Name, due.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transact: %v", err)
	}
}

func TestJobStore_TransactRollsBack(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	j := job.New("tx", time.Now().UTC().Add(-time.Second))
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("create: %v", err)
	}

	boom := errors.New("boom")
	err := s.Transact(ctx, func(tx job.Tx) error {
		if err := tx.Delete(ctx, j.ID); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("transact err = %v, want boom", err)
	}
	if _, err := s.GetJob(ctx, j.ID); err != nil {
		t.Fatalf("row vanished after rolled-back transaction: %v", err)
	}
}

// Concurrent claims over one due row: SKIP LOCKED must let exactly one win.
func TestJobStore_ConcurrentClaims(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	j := job.New("contested", time.Now().UTC().Add(-time.Second))
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("create: %v", err)
	}

	const claimers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range claimers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a := lock.NewAcquirer(s, "", 10*time.Minute)
			claimed, err := a.Claim(ctx)
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			if claimed != nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("%d claims won the same row, want exactly 1", wins)
	}
}

func TestJobStore_CustomFieldMap(t *testing.T) {
	s := setupTestStore(t,
		postgres.WithTable("nightly"),
		postgres.WithFieldMap(job.FieldMap{
			SleepUntil:  "wake_at",
			Interval:    "cron_expr",
			RepeatUntil: "not_after",
			AutoRemove:  "ephemeral",
		}),
	)
	ctx := context.Background()

	j := job.New("mapped", time.Now().UTC().Add(-time.Second),
		job.WithInterval("@every 5m"), job.WithAutoRemove())
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Interval != "@every 5m" || !got.AutoRemove {
		t.Fatalf("remapped columns lost data: %+v", got)
	}

	err = s.Transact(ctx, func(tx job.Tx) error {
		found, err := tx.FindDue(ctx, "", time.Now().UTC())
		if err != nil {
			return err
		}
		if found == nil {
			t.Fatal("FindDue found nothing with a custom field map")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transact: %v", err)
	}
}
