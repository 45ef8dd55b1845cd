package scheduler

import (
	"context"
	"time"

	"github.com/assetdesk/internal/logger"
	"github.com/assetdesk/internal/models"
	"go.uber.org/zap"
)

// ScheduleManager implements the operator-facing operations over schedules. It stamps
// next_run on every write that affects the recurrence or the enabled flag.
type ScheduleManager struct {
	store  Store
	runner *Runner
	loc    *time.Location
	clock  Clock
	log    *logger.Logger
}

func NewScheduleManager(store Store, runner *Runner, loc *time.Location, clock Clock, log *logger.Logger) *ScheduleManager {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ScheduleManager{store: store, runner: runner, loc: loc, clock: clock, log: log}
}

// CreateSchedule validates and stores a new schedule. Outcome fields supplied by the
// caller are ignored.
func (m *ScheduleManager) CreateSchedule(ctx context.Context, s *models.ReportSchedule) error {
	s.ID = ""
	s.LastRun = nil
	s.LastStatus = models.RunStatusPending
	s.LastError = ""
	s.NextRun = nil

	if err := s.Validate(); err != nil {
		return err
	}
	canonicalize(s)
	if s.Enabled {
		next, err := NextRunFor(s, m.clock(), m.loc)
		if err != nil {
			return err
		}
		s.NextRun = &next
	}

	if err := m.store.Create(ctx, s); err != nil {
		return err
	}
	m.log.Info("Schedule created", zap.String("schedule_id", s.ID), zap.String("schedule", s.Name))
	return nil
}

func (m *ScheduleManager) GetSchedule(ctx context.Context, id string) (*models.ReportSchedule, error) {
	return m.store.Get(ctx, id)
}

func (m *ScheduleManager) ListSchedules(ctx context.Context, filter ListFilter) ([]models.ReportSchedule, error) {
	return m.store.List(ctx, filter)
}

// UpdateSchedule replaces the definition of schedule id with in. next_run is recomputed
// from now when the recurrence changes or the schedule is re-enabled, and cleared when
// it is disabled.
func (m *ScheduleManager) UpdateSchedule(ctx context.Context, id string, in *models.ReportSchedule) (*models.ReportSchedule, error) {
	current, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.update(ctx, current, in)
}

// EditSchedule applies an API edit to schedule id. Leaving enabled out of the input keeps
// the schedule's current state.
func (m *ScheduleManager) EditSchedule(ctx context.Context, id string, in *models.ScheduleInput) (*models.ReportSchedule, error) {
	current, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.update(ctx, current, in.ApplyTo(current))
}

func (m *ScheduleManager) update(ctx context.Context, current, in *models.ReportSchedule) (*models.ReportSchedule, error) {
	id := current.ID
	updated := *current
	updated.Name = in.Name
	updated.ReportType = in.ReportType
	updated.Scope = in.Scope
	updated.Frequency = in.Frequency
	updated.TimeOfDay = in.TimeOfDay
	updated.DayOfWeek = in.DayOfWeek
	updated.DayOfMonth = in.DayOfMonth
	updated.Recipients = in.Recipients
	updated.Enabled = in.Enabled

	if err := updated.Validate(); err != nil {
		return nil, err
	}
	canonicalize(&updated)

	reschedule := updated.Enabled != current.Enabled ||
		(updated.Enabled && (current.NextRun == nil || recurrenceChanged(current, &updated)))
	if reschedule {
		updated.NextRun = nil
		if updated.Enabled {
			next, err := NextRunFor(&updated, m.clock(), m.loc)
			if err != nil {
				return nil, err
			}
			updated.NextRun = &next
		}
	}

	if err := m.store.Update(ctx, &updated, reschedule); err != nil {
		return nil, err
	}
	m.log.Info("Schedule updated", zap.String("schedule_id", id))
	return m.store.Get(ctx, id)
}

// DeleteSchedule removes a schedule. Deleting an unknown id succeeds.
func (m *ScheduleManager) DeleteSchedule(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.log.Info("Schedule deleted", zap.String("schedule_id", id))
	return nil
}

// EnableSchedule turns a schedule on, computing next_run from now. Enabling an already
// enabled schedule keeps its next run.
func (m *ScheduleManager) EnableSchedule(ctx context.Context, id string) (*models.ReportSchedule, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Enabled && s.NextRun != nil {
		return s, nil
	}

	next, err := NextRunFor(s, m.clock(), m.loc)
	if err != nil {
		return nil, err
	}
	return m.store.SetEnabled(ctx, id, true, &next)
}

func (m *ScheduleManager) DisableSchedule(ctx context.Context, id string) (*models.ReportSchedule, error) {
	return m.store.SetEnabled(ctx, id, false, nil)
}

// RunNow executes schedule id immediately and waits for the outcome. It does not
// touch next_run.
func (m *ScheduleManager) RunNow(ctx context.Context, id string) (*models.ReportSchedule, Outcome, error) {
	outcome, err := m.runner.Run(ctx, id, TriggerManual)
	if err != nil {
		return nil, outcome, err
	}
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, outcome, err
	}
	return s, outcome, nil
}

func (m *ScheduleManager) ListRuns(ctx context.Context, id string, limit int) ([]models.ReportRun, error) {
	if _, err := m.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return m.store.ListRuns(ctx, id, limit)
}

// PreviewSchedule validates s without storing it and returns the next run it would get.
func (m *ScheduleManager) PreviewSchedule(s *models.ReportSchedule) (time.Time, error) {
	if err := s.Validate(); err != nil {
		return time.Time{}, err
	}
	return NextRunFor(s, m.clock(), m.loc)
}

// canonicalize rewrites the recurrence columns in their normal form ("8:00" -> "08:00").
func canonicalize(s *models.ReportSchedule) {
	if rec, err := s.Recurrence(); err == nil {
		s.SetRecurrence(rec)
	}
}

func recurrenceChanged(a, b *models.ReportSchedule) bool {
	return a.Frequency != b.Frequency ||
		a.TimeOfDay != b.TimeOfDay ||
		!equalIntPtr(a.DayOfWeek, b.DayOfWeek) ||
		!equalIntPtr(a.DayOfMonth, b.DayOfMonth)
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
