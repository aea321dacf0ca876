package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	scheduler "github.com/bobo-le/typeorm-scheduler"
	"github.com/bobo-le/typeorm-scheduler/job"
	"github.com/bobo-le/typeorm-scheduler/store/memory"
)

// counter is a concurrency-safe hook call counter.
type counter struct {
	n atomic.Int64
}

func (c *counter) inc()       { c.n.Add(1) }
func (c *counter) get() int64 { return c.n.Load() }

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func newScheduler(t *testing.T, st *memory.Store, hooks scheduler.Hooks, opts ...scheduler.Option) *scheduler.Scheduler {
	t.Helper()
	base := []scheduler.Option{
		scheduler.WithStore(st),
		scheduler.WithHooks(hooks),
		scheduler.WithIdleDelay(20 * time.Millisecond),
	}
	s, err := scheduler.New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(stopCtx)
	})
	return s
}

func TestNewRequiresStore(t *testing.T) {
	if _, err := scheduler.New(); !errors.Is(err, scheduler.ErrNoStore) {
		t.Fatalf("err = %v, want ErrNoStore", err)
	}
}

// A due one-shot job is processed exactly once and its row goes inert.
func TestOneShotProcessedOnce(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	j := job.New("one-shot", time.Now().UTC().Add(-10*time.Second))
	if err := st.CreateJob(ctx, j); err != nil {
		t.Fatalf("create: %v", err)
	}

	var fired counter
	s := newScheduler(t, st, scheduler.Hooks{
		OnJob: func(_ context.Context, got *job.Job) error {
			if got.ID.String() != j.ID.String() {
				t.Errorf("callback got %s, want %s", got.ID, j.ID)
			}
			fired.inc()
			return nil
		},
	})
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		got, err := st.GetJob(ctx, j.ID)
		return err == nil && got.SleepUntil == nil
	}, "job never went inert")

	if fired.get() != 1 {
		t.Fatalf("callback fired %d times, want 1", fired.get())
	}
}

// A job due in the future is never claimed early.
func TestFutureJobNotClaimed(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	j := job.New("future", time.Now().UTC().Add(100*time.Second))
	if err := st.CreateJob(ctx, j); err != nil {
		t.Fatalf("create: %v", err)
	}

	var fired counter
	s := newScheduler(t, st, scheduler.Hooks{
		OnJob: func(_ context.Context, _ *job.Job) error {
			fired.inc()
			return nil
		},
	})
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	time.Sleep(200 * time.Millisecond)

	if fired.get() != 0 {
		t.Fatalf("callback fired %d times for a future job, want 0", fired.get())
	}
	got, err := st.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SleepUntil == nil {
		t.Fatal("future job's SleepUntil was cleared")
	}
}

// An expiring job with AutoRemove set leaves no row behind.
func TestAutoRemoveDeletesRow(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	j := job.New("ephemeral", time.Now().UTC().Add(-10*time.Second), job.WithAutoRemove())
	if err := st.CreateJob(ctx, j); err != nil {
		t.Fatalf("create: %v", err)
	}

	s := newScheduler(t, st, scheduler.Hooks{})
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		n, err := st.CountJobs(ctx, "")
		return err == nil && n == 0
	}, "auto-remove job still present")
}

// A recurring job without RepeatUntil is always re-armed to a future value.
func TestRecurringJobKeepsFiring(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	j := job.New("heartbeat", time.Now().UTC().Add(-10*time.Second),
		job.WithInterval("@every 1s"))
	if err := st.CreateJob(ctx, j); err != nil {
		t.Fatalf("create: %v", err)
	}

	var fired counter
	s := newScheduler(t, st, scheduler.Hooks{
		OnJob: func(_ context.Context, _ *job.Job) error {
			fired.inc()
			return nil
		},
	}, scheduler.WithLockDuration(0))
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool { return fired.get() > 2 },
		"recurring job fired too few times")

	got, err := st.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SleepUntil == nil {
		t.Fatal("recurring job without RepeatUntil went inert")
	}
}

// A recurring job expires once RepeatUntil is reached: the row goes inert
// and the callback stops firing.
func TestRecurringJobExpiresAtRepeatUntil(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	j := job.New("bounded", time.Now().UTC().Add(-10*time.Second),
		job.WithInterval("@every 1s"),
		job.WithRepeatUntil(time.Now().UTC().Add(2*time.Second)),
	)
	if err := st.CreateJob(ctx, j); err != nil {
		t.Fatalf("create: %v", err)
	}

	var fired counter
	s := newScheduler(t, st, scheduler.Hooks{
		OnJob: func(_ context.Context, _ *job.Job) error {
			fired.inc()
			return nil
		},
	}, scheduler.WithLockDuration(0))
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		got, err := st.GetJob(ctx, j.ID)
		return err == nil && got.SleepUntil == nil
	}, "bounded recurring job never went inert")

	if fired.get() < 2 {
		t.Fatalf("callback fired %d times before expiry, want at least 2", fired.get())
	}

	// No further invocations once inert.
	settled := fired.get()
	time.Sleep(150 * time.Millisecond)
	if fired.get() != settled {
		t.Fatalf("callback fired after expiry: %d -> %d", settled, fired.get())
	}
}

// OnIdle fires once per transition into idle, not once per idle tick.
func TestOnIdleFiresOncePerTransition(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	var idles counter
	s := newScheduler(t, st, scheduler.Hooks{
		OnIdle: func(_ context.Context) { idles.inc() },
	}, scheduler.WithIdleDelay(10*time.Millisecond))
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, time.Second, func() bool { return idles.get() >= 1 }, "never went idle")
	time.Sleep(100 * time.Millisecond) // many idle ticks pass
	if idles.get() != 1 {
		t.Fatalf("OnIdle fired %d times during one idle streak, want 1", idles.get())
	}
	if !s.IsIdle() {
		t.Fatal("IsIdle() = false during idle streak")
	}

	// A new due job ends the streak; the next empty poll is a fresh
	// transition and fires OnIdle again.
	if err := st.CreateJob(ctx, job.New("wake", time.Now().UTC().Add(-time.Second))); err != nil {
		t.Fatalf("create: %v", err)
	}
	waitFor(t, time.Second, func() bool { return idles.get() == 2 },
		"OnIdle did not fire again after the idle streak was broken")
}

// Callback errors are routed to OnError and the loop keeps going.
func TestCallbackErrorRoutedToOnError(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	boom := errors.New("handler exploded")
	j := job.New("fragile", time.Now().UTC().Add(-time.Second))
	if err := st.CreateJob(ctx, j); err != nil {
		t.Fatalf("create: %v", err)
	}

	var (
		mu     sync.Mutex
		caught []error
	)
	var fired counter
	s := newScheduler(t, st, scheduler.Hooks{
		OnJob: func(_ context.Context, _ *job.Job) error {
			fired.inc()
			return boom
		},
		OnError: func(_ context.Context, err error) {
			mu.Lock()
			caught = append(caught, err)
			mu.Unlock()
		},
	})
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(caught) > 0
	}, "OnError never fired")

	mu.Lock()
	err := caught[0]
	mu.Unlock()
	if !errors.Is(err, boom) {
		t.Fatalf("OnError got %v, want %v", err, boom)
	}

	// The failing one-shot was still finalized: errors do not suppress
	// rescheduling and never abort the loop.
	waitFor(t, 2*time.Second, func() bool {
		got, getErr := st.GetJob(ctx, j.ID)
		return getErr == nil && got.SleepUntil == nil
	}, "failed job was not finalized")
	if !s.IsRunning() {
		t.Fatal("scheduler stopped after a callback error")
	}
}

// Stop waits for the in-flight tick to finish before returning.
func TestStopDrainsInFlightTick(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	if err := st.CreateJob(ctx, job.New("slow", time.Now().UTC().Add(-time.Second))); err != nil {
		t.Fatalf("create: %v", err)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	var stopped counter
	s := newScheduler(t, st, scheduler.Hooks{
		OnJob: func(_ context.Context, _ *job.Job) error {
			close(entered)
			<-release
			return nil
		},
		OnStop: func(_ context.Context) { stopped.inc() },
	})
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	<-entered
	if !s.IsProcessing() {
		t.Fatal("IsProcessing() = false while the callback is running")
	}

	stopDone := make(chan error, 1)
	go func() {
		stopDone <- s.Stop(context.Background())
	}()

	// Stop must not return while the callback is stuck.
	select {
	case err := <-stopDone:
		t.Fatalf("Stop returned %v while the tick was still in flight", err)
	case <-time.After(100 * time.Millisecond):
	}
	if s.IsRunning() {
		t.Fatal("IsRunning() = true after Stop was requested")
	}

	close(release)
	if err := <-stopDone; err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stopped.get() != 1 {
		t.Fatalf("OnStop fired %d times, want 1", stopped.get())
	}
	if s.IsProcessing() {
		t.Fatal("IsProcessing() = true after drain")
	}
}

func TestStartStopIdempotentAndRestartable(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	var starts, stops counter
	s := newScheduler(t, st, scheduler.Hooks{
		OnStart: func(_ context.Context) { starts.inc() },
		OnStop:  func(_ context.Context) { stops.inc() },
	})

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if starts.get() != 1 {
		t.Fatalf("OnStart fired %d times, want 1", starts.get())
	}

	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if stops.get() != 1 {
		t.Fatalf("OnStop fired %d times, want 1", stops.get())
	}
	if s.IsRunning() {
		t.Fatal("IsRunning() = true after stop")
	}

	// A stopped scheduler can be started again.
	if err := s.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if !s.IsRunning() {
		t.Fatal("IsRunning() = false after restart")
	}
	if starts.get() != 2 {
		t.Fatalf("OnStart fired %d times after restart, want 2", starts.get())
	}
}

// Two instances sharing one store never process the same row twice.
func TestTwoInstancesSingleProcessing(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	const rows = 10
	for i := 0; i < rows; i++ {
		if err := st.CreateJob(ctx, job.New("shared", time.Now().UTC().Add(-time.Second))); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	var fired counter
	hooks := scheduler.Hooks{
		OnJob: func(_ context.Context, _ *job.Job) error {
			fired.inc()
			return nil
		},
	}
	a := newScheduler(t, st, hooks)
	b := newScheduler(t, st, hooks)
	if err := a.Start(ctx); err != nil {
		t.Fatalf("start a: %v", err)
	}
	if err := b.Start(ctx); err != nil {
		t.Fatalf("start b: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool { return fired.get() >= rows },
		"not all rows were processed")
	// Give a double-processing bug a moment to show.
	time.Sleep(100 * time.Millisecond)
	if fired.get() != rows {
		t.Fatalf("callbacks fired %d times for %d rows", fired.get(), rows)
	}
}
