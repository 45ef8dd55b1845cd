package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/assetdesk/internal/logger"
	"github.com/assetdesk/internal/models"
	"github.com/assetdesk/internal/report"
	"go.uber.org/zap"
)

type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// Clock returns the current instant. Tests replace it with a fixed or stepping clock.
type Clock func() time.Time

type ReportGenerator interface {
	GenerateReport(ctx context.Context, reportType models.ReportType, scope string) (*report.Report, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, recipients []string, r *report.Report) error
}

// FailureNotifier is told about failed runs, e.g. to page the IT channel.
type FailureNotifier interface {
	NotifyFailure(ctx context.Context, s *models.ReportSchedule, runErr error) error
}

// Outcome is the result of one run as seen by its caller.
type Outcome struct {
	ScheduleID string           `json:"schedule_id"`
	Trigger    Trigger          `json:"trigger"`
	Status     models.RunStatus `json:"status"`
	Error      string           `json:"error,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`

	// Err is the *ExecutionError behind a failed run.
	Err error `json:"-"`
}

const recordTimeout = 10 * time.Second

// Runner executes a single schedule: generate the report, deliver it, record the outcome.
// Generation and delivery failures never escape Run; they become a failed Outcome.
type Runner struct {
	store     Store
	generator ReportGenerator
	deliverer Deliverer
	notifier  FailureNotifier
	clock     Clock
	timeout   time.Duration
	log       *logger.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

type RunnerOption func(*Runner)

func WithFailureNotifier(n FailureNotifier) RunnerOption {
	return func(r *Runner) { r.notifier = n }
}

func WithRunTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.timeout = d }
}

func WithClock(c Clock) RunnerOption {
	return func(r *Runner) { r.clock = c }
}

func NewRunner(store Store, generator ReportGenerator, deliverer Deliverer, log *logger.Logger, opts ...RunnerOption) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	r := &Runner{
		store:     store,
		generator: generator,
		deliverer: deliverer,
		clock:     time.Now,
		timeout:   5 * time.Minute,
		log:       log,
		inflight:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes schedule id. Scheduled runs of a schedule that is disabled, deleted or
// already running are skipped. Manual runs ignore the enabled flag but fail with
// NotFoundError or ErrRunInProgress. The returned error is non-nil only when the run
// did not start or its outcome could not be stored.
func (r *Runner) Run(ctx context.Context, id string, trigger Trigger) (Outcome, error) {
	outcome := Outcome{ScheduleID: id, Trigger: trigger, StartedAt: r.clock()}
	log := r.log.With(zap.String("schedule_id", id), zap.String("trigger", string(trigger)))

	if !r.acquire(id) {
		if trigger == TriggerManual {
			return outcome, ErrRunInProgress
		}
		log.Info("Skipping run, previous run still in progress")
		return r.skip(ctx, outcome, nil, "previous run still in progress")
	}
	defer r.release(id)

	schedule, err := r.store.Get(ctx, id)
	if err != nil {
		if trigger == TriggerScheduled && IsNotFound(err) {
			log.Info("Skipping run, schedule was deleted")
			outcome.Status = models.RunStatusSkipped
			outcome.FinishedAt = r.clock()
			return outcome, nil
		}
		return outcome, err
	}

	if trigger == TriggerScheduled && !schedule.Enabled {
		log.Info("Skipping run, schedule was disabled")
		return r.skip(ctx, outcome, schedule, "schedule disabled")
	}

	execErr := r.execute(ctx, schedule)
	outcome.FinishedAt = r.clock()
	if execErr != nil {
		outcome.Status = models.RunStatusFailed
		outcome.Err = execErr
		outcome.Error = causeMessage(execErr)
		log.Warn("Report run failed", zap.Error(execErr))
	} else {
		outcome.Status = models.RunStatusSuccess
		log.Info("Report delivered",
			zap.Int("recipients", len(schedule.Recipients)),
			zap.Duration("took", outcome.FinishedAt.Sub(outcome.StartedAt)))
	}

	if err := r.record(ctx, outcome, schedule); err != nil {
		log.Error("Failed to record run outcome", zap.Error(err))
		return outcome, err
	}

	if execErr != nil && r.notifier != nil {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		if err := r.notifier.NotifyFailure(nctx, schedule, execErr); err != nil {
			log.Warn("Failed to send failure notification", zap.Error(err))
		}
		cancel()
	}

	return outcome, nil
}

// execute runs generation under the run timeout, then delivery. Once a report is
// generated it is delivered regardless of ctx, so a send is never abandoned halfway.
// Panics in either collaborator are converted to errors of the stage that panicked.
func (r *Runner) execute(ctx context.Context, s *models.ReportSchedule) (err error) {
	stage := StageGenerate
	defer func() {
		if p := recover(); p != nil {
			err = &ExecutionError{Stage: stage, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	genCtx, cancel := context.WithTimeout(ctx, r.timeout)
	content, err := r.generator.GenerateReport(genCtx, s.ReportType, s.Scope)
	cancel()
	if err != nil {
		return &ExecutionError{Stage: StageGenerate, Err: err}
	}

	stage = StageDeliver
	if err := r.deliverer.Deliver(context.WithoutCancel(ctx), s.Recipients, content); err != nil {
		return &ExecutionError{Stage: StageDeliver, Err: err}
	}
	return nil
}

func (r *Runner) skip(ctx context.Context, outcome Outcome, s *models.ReportSchedule, reason string) (Outcome, error) {
	outcome.Status = models.RunStatusSkipped
	outcome.Error = reason
	outcome.FinishedAt = r.clock()
	if err := r.record(ctx, outcome, s); err != nil {
		r.log.Warn("Failed to record skipped run", zap.String("schedule_id", outcome.ScheduleID), zap.Error(err))
	}
	return outcome, nil
}

// record writes the outcome even if ctx was cancelled while the run was in flight.
func (r *Runner) record(ctx context.Context, outcome Outcome, s *models.ReportSchedule) error {
	res := Result{
		Trigger:    outcome.Trigger,
		StartedAt:  outcome.StartedAt,
		FinishedAt: outcome.FinishedAt,
		Status:     outcome.Status,
		Error:      outcome.Error,
	}
	if s != nil {
		res.Recipients = s.Recipients
		res.ReportType = s.ReportType
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	return r.store.RecordResult(wctx, outcome.ScheduleID, res)
}

func (r *Runner) acquire(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inflight[id]; busy {
		return false
	}
	r.inflight[id] = struct{}{}
	return true
}

func (r *Runner) release(id string) {
	r.mu.Lock()
	delete(r.inflight, id)
	r.mu.Unlock()
}

// causeMessage returns the collaborator's own error text, unwrapped from the stage.
func causeMessage(err error) string {
	var execErr *ExecutionError
	if errors.As(err, &execErr) && execErr.Err != nil {
		return execErr.Err.Error()
	}
	return err.Error()
}
