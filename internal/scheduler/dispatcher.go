package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/assetdesk/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

type DispatcherConfig struct {
	PollInterval      time.Duration
	MaxConcurrentRuns int64
	Location          *time.Location
	Clock             Clock
}

// Dispatcher polls the store for due schedules, advances each one's next run before
// executing it, and hands the run to the Runner in its own goroutine. It is the only
// writer of next_run for automatic runs.
//
// Advancing next_run first means a crash mid-run loses that fire instead of repeating
// it. Schedules that came due while the process was down fire once on the first poll.
type Dispatcher struct {
	store    Store
	runner   *Runner
	interval time.Duration
	loc      *time.Location
	clock    Clock
	sem      *semaphore.Weighted
	log      *logger.Logger

	runCtx   context.Context
	runs     sync.WaitGroup
	loop     sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
}

func NewDispatcher(store Store, runner *Runner, cfg DispatcherConfig, log *logger.Logger) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.MaxConcurrentRuns <= 0 {
		cfg.MaxConcurrentRuns = 8
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{
		store:    store,
		runner:   runner,
		interval: cfg.PollInterval,
		loc:      cfg.Location,
		clock:    cfg.Clock,
		sem:      semaphore.NewWeighted(cfg.MaxConcurrentRuns),
		log:      log,
		// In-flight runs are never cancelled; Stop waits for them instead.
		runCtx:   context.Background(),
		stopChan: make(chan struct{}),
	}
}

// Start polls once immediately and then every poll interval until Stop or ctx is done.
func (d *Dispatcher) Start(ctx context.Context) {
	d.log.Info("Dispatcher started",
		zap.Duration("poll_interval", d.interval),
		zap.String("timezone", d.loc.String()))

	d.loop.Add(1)
	go func() {
		defer d.loop.Done()

		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		d.Tick(ctx)
		for {
			select {
			case <-ticker.C:
				d.Tick(ctx)
			case <-d.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the poll loop and waits for in-flight runs to finish.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopChan) })
	d.loop.Wait()
	d.Wait()
	d.log.Info("Dispatcher stopped")
}

// Wait blocks until every run dispatched so far has finished.
func (d *Dispatcher) Wait() {
	d.runs.Wait()
}

// Tick performs one poll: claim every due schedule and dispatch its run. It never waits
// for runs to complete. It returns the number of runs dispatched.
func (d *Dispatcher) Tick(ctx context.Context) int {
	now := d.clock()
	due, err := d.store.ListDue(ctx, now)
	if err != nil {
		d.log.Error("Failed to list due schedules", zap.Error(err))
		return 0
	}

	dispatched := 0
	for i := range due {
		s := &due[i]
		log := d.log.With(zap.String("schedule_id", s.ID), zap.String("schedule", s.Name))

		next, err := NextRunFor(s, now, d.loc)
		if err != nil {
			log.Error("Stored schedule has an invalid recurrence", zap.Error(err))
			continue
		}

		claimed, err := d.store.Claim(ctx, s.ID, *s.NextRun, next)
		if err != nil {
			log.Error("Failed to claim schedule", zap.Error(err))
			continue
		}
		if !claimed {
			// disabled, deleted or rescheduled since ListDue
			log.Debug("Schedule changed before claim, not dispatching")
			continue
		}

		log.Info("Dispatching report run",
			zap.Time("due", *s.NextRun),
			zap.Time("next_run", next))
		d.dispatch(s.ID)
		dispatched++
	}
	return dispatched
}

func (d *Dispatcher) dispatch(id string) {
	d.runs.Add(1)
	go func() {
		defer d.runs.Done()

		if err := d.sem.Acquire(d.runCtx, 1); err != nil {
			return
		}
		defer d.sem.Release(1)

		outcome, err := d.runner.Run(d.runCtx, id, TriggerScheduled)
		if err != nil {
			d.log.Error("Scheduled run did not complete",
				zap.String("schedule_id", id), zap.Error(err))
			return
		}
		d.log.Debug("Scheduled run finished",
			zap.String("schedule_id", id),
			zap.String("status", string(outcome.Status)))
	}()
}
