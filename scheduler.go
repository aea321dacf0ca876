package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bobo-le/typeorm-scheduler/id"
	"github.com/bobo-le/typeorm-scheduler/interval"
	"github.com/bobo-le/typeorm-scheduler/job"
	"github.com/bobo-le/typeorm-scheduler/lock"
)

// Status is a snapshot of the scheduler's state machine: Stopped is the
// zero value, Running covers the polling loop, and Processing/Idle qualify
// a running scheduler.
type Status struct {
	// Running is true between Start and Stop.
	Running bool
	// Processing is true while a tick is claiming or handling a row.
	Processing bool
	// Idle is true after a tick found no due row, until one is found.
	Idle bool
}

// Scheduler drives the claim/process/reschedule loop against one store.
// Instances are independent: run several against the same store and each
// due row is still handled by exactly one of them per lock window.
type Scheduler struct {
	config      Config
	hooks       Hooks
	logger      *slog.Logger
	store       job.Store
	acquirer    *lock.Acquirer
	rescheduler *Rescheduler
	sid         id.SchedulerID

	mu         sync.Mutex
	running    bool
	processing bool
	idle       bool
	stopCh     chan struct{}
	drained    chan struct{}
}

// New creates a Scheduler. A store is required; everything else defaults.
func New(opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		config: DefaultConfig(),
		logger: slog.Default(),
		sid:    id.NewSchedulerID(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.store == nil {
		return nil, ErrNoStore
	}

	s.hooks = s.hooks.merged(DefaultHooks(s.logger))

	calc := interval.NewCalculator(s.config.ReprocessDelay)
	s.acquirer = lock.NewAcquirer(s.store, s.config.Queue, s.config.LockDuration)
	s.rescheduler = NewRescheduler(s.store, calc, s.logger)
	return s, nil
}

// ID returns this instance's unique identifier.
func (s *Scheduler) ID() id.SchedulerID { return s.sid }

// Store returns the scheduler's store.
func (s *Scheduler) Store() job.Store { return s.store }

// Config returns a copy of the scheduler's configuration.
func (s *Scheduler) Config() Config { return s.config }

// Start begins the polling loop. It is a no-op when already running. The
// first tick runs on a fresh goroutine, never synchronously inside Start.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.processing = false
	s.idle = false
	s.stopCh = make(chan struct{})
	s.drained = make(chan struct{})
	stopCh, drained := s.stopCh, s.drained
	s.mu.Unlock()

	s.hooks.OnStart(ctx)
	s.logger.Info("scheduler started",
		slog.String("scheduler_id", s.sid.String()),
		slog.String("queue", s.config.Queue),
		slog.Duration("lock_duration", s.config.LockDuration),
	)

	go s.loop(stopCh, drained)
	return nil
}

// Stop halts scheduling of new ticks and waits for the loop to drain: the
// loop publishes completion after finishing its current iteration, and Stop
// blocks on that one-shot signal. There is no cancellation primitive, so a
// hung callback blocks Stop until ctx expires, in which case Stop returns
// ctx.Err with the loop still draining in the background.
// Stop is idempotent.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stopCh, drained := s.stopCh, s.drained
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-drained:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.hooks.OnStop(ctx)
	s.logger.Info("scheduler stopped", slog.String("scheduler_id", s.sid.String()))
	return nil
}

// Status returns a snapshot of the state machine.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{Running: s.running, Processing: s.processing, Idle: s.idle}
}

// IsRunning reports whether the scheduler is between Start and Stop.
func (s *Scheduler) IsRunning() bool { return s.Status().Running }

// IsProcessing reports whether a tick is currently claiming or handling a row.
func (s *Scheduler) IsProcessing() bool { return s.Status().Processing }

// IsIdle reports whether the most recent claim attempt found no due row.
func (s *Scheduler) IsIdle() bool { return s.Status().Idle }

// loop runs ticks until stopCh closes, then publishes drained.
func (s *Scheduler) loop(stopCh <-chan struct{}, drained chan<- struct{}) {
	defer close(drained)

	for {
		if !s.sleep(stopCh, s.config.NextDelay) {
			return
		}
		if idleTick := s.tick(); idleTick {
			if !s.sleep(stopCh, s.config.IdleDelay) {
				return
			}
		}
	}
}

// tick claims at most one due row and handles it. Every error is routed to
// the error hook; a tick never aborts the loop. The return value reports an
// idle tick (no due row) so the loop appends the idle delay.
func (s *Scheduler) tick() (idleTick bool) {
	ctx := context.Background()

	s.setProcessing(true)
	defer s.setProcessing(false)

	j, err := s.acquirer.Claim(ctx)
	if err != nil {
		s.hooks.OnError(ctx, err)
		return false
	}

	if j == nil {
		if s.enterIdle() {
			s.hooks.OnIdle(ctx)
		}
		return true
	}
	s.exitIdle()

	if cbErr := s.hooks.OnJob(ctx, j); cbErr != nil {
		s.hooks.OnError(ctx, cbErr)
	}
	if rsErr := s.rescheduler.Reschedule(ctx, j); rsErr != nil {
		s.hooks.OnError(ctx, rsErr)
	}
	return false
}

// sleep waits d (zero returns at once) unless stopCh closes first.
// It reports whether the loop should keep going.
func (s *Scheduler) sleep(stopCh <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-stopCh:
			return false
		default:
			return true
		}
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-stopCh:
		return false
	case <-t.C:
		return true
	}
}

func (s *Scheduler) setProcessing(v bool) {
	s.mu.Lock()
	s.processing = v
	s.mu.Unlock()
}

// enterIdle flips the idle flag on and reports whether this call was the
// transition, so the idle hook fires once per streak.
func (s *Scheduler) enterIdle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idle {
		return false
	}
	s.idle = true
	return true
}

func (s *Scheduler) exitIdle() {
	s.mu.Lock()
	s.idle = false
	s.mu.Unlock()
}
