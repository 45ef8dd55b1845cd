package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/assetdesk/internal/models"
	"gorm.io/gorm"
)

// maxErrorLength bounds last_error so one verbose transport error cannot bloat the row.
const maxErrorLength = 512

// Store is the durable record of schedules and their execution state. Create and Update
// validate the definition before anything is written.
type Store interface {
	Create(ctx context.Context, s *models.ReportSchedule) error
	Get(ctx context.Context, id string) (*models.ReportSchedule, error)
	List(ctx context.Context, filter ListFilter) ([]models.ReportSchedule, error)
	// Update writes the definition columns; with reschedule it also writes enabled and next_run.
	Update(ctx context.Context, s *models.ReportSchedule, reschedule bool) error
	// SetEnabled switches a schedule on or off together with its next run.
	SetEnabled(ctx context.Context, id string, enabled bool, nextRun *time.Time) (*models.ReportSchedule, error)
	// Delete is idempotent.
	Delete(ctx context.Context, id string) error

	// ListDue returns the enabled schedules whose next run is at or before now.
	ListDue(ctx context.Context, now time.Time) ([]models.ReportSchedule, error)
	// Claim advances next_run from expected to next if the schedule is still enabled and
	// nobody else advanced it first. It reports whether this caller won.
	Claim(ctx context.Context, id string, expected, next time.Time) (bool, error)
	// RecordResult stores the outcome of a run. Writing to a deleted schedule is a no-op.
	RecordResult(ctx context.Context, id string, result Result) error

	ListRuns(ctx context.Context, scheduleID string, limit int) ([]models.ReportRun, error)
}

type ListFilter struct {
	Enabled    *bool
	ReportType models.ReportType
}

// Result is what a run writes back to its schedule.
type Result struct {
	Trigger    Trigger
	StartedAt  time.Time
	FinishedAt time.Time
	Status     models.RunStatus
	Error      string
	Recipients []string
	ReportType models.ReportType
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (st *GormStore) Create(ctx context.Context, s *models.ReportSchedule) error {
	if err := s.Validate(); err != nil {
		return err
	}
	normalizeTimes(s)
	if err := st.db.WithContext(ctx).Create(s).Error; err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}
	return nil
}

func (st *GormStore) Get(ctx context.Context, id string) (*models.ReportSchedule, error) {
	var s models.ReportSchedule
	if err := st.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, fmt.Errorf("failed to load schedule %s: %w", id, err)
	}
	return &s, nil
}

func (st *GormStore) List(ctx context.Context, filter ListFilter) ([]models.ReportSchedule, error) {
	var schedules []models.ReportSchedule
	query := st.db.WithContext(ctx)
	if filter.Enabled != nil {
		query = query.Where("enabled = ?", *filter.Enabled)
	}
	if filter.ReportType != "" {
		query = query.Where("report_type = ?", filter.ReportType)
	}
	if err := query.Order("name").Find(&schedules).Error; err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return schedules, nil
}

// Update leaves the run outcome columns alone; they are owned by RecordResult. Without
// reschedule, next_run is not written so a concurrent claim by the dispatcher is kept.
func (st *GormStore) Update(ctx context.Context, s *models.ReportSchedule, reschedule bool) error {
	if err := s.Validate(); err != nil {
		return err
	}
	normalizeTimes(s)

	columns := []any{"report_type", "scope", "frequency", "time_of_day", "day_of_week",
		"day_of_month", "recipients", "updated_at"}
	if reschedule {
		columns = append(columns, "enabled", "next_run")
	}

	s.UpdatedAt = time.Now().UTC()
	res := st.db.WithContext(ctx).Model(s).
		Select("name", columns...).
		Updates(s)
	if res.Error != nil {
		return fmt.Errorf("failed to update schedule %s: %w", s.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return &NotFoundError{ID: s.ID}
	}
	return nil
}

func (st *GormStore) SetEnabled(ctx context.Context, id string, enabled bool, nextRun *time.Time) (*models.ReportSchedule, error) {
	if nextRun != nil {
		utc := nextRun.UTC()
		nextRun = &utc
	}
	res := st.db.WithContext(ctx).Model(&models.ReportSchedule{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"enabled":    enabled,
			"next_run":   nextRun,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to toggle schedule %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &NotFoundError{ID: id}
	}
	return st.Get(ctx, id)
}

func (st *GormStore) Delete(ctx context.Context, id string) error {
	return st.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("schedule_id = ?", id).Delete(&models.ReportRun{}).Error; err != nil {
			return fmt.Errorf("failed to delete runs of schedule %s: %w", id, err)
		}
		if err := tx.Where("id = ?", id).Delete(&models.ReportSchedule{}).Error; err != nil {
			return fmt.Errorf("failed to delete schedule %s: %w", id, err)
		}
		return nil
	})
}

func (st *GormStore) ListDue(ctx context.Context, now time.Time) ([]models.ReportSchedule, error) {
	var due []models.ReportSchedule
	err := st.db.WithContext(ctx).
		Where("enabled = ? AND next_run IS NOT NULL AND next_run <= ?", true, now.UTC()).
		Order("next_run").
		Find(&due).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list due schedules: %w", err)
	}
	return due, nil
}

func (st *GormStore) Claim(ctx context.Context, id string, expected, next time.Time) (bool, error) {
	res := st.db.WithContext(ctx).Model(&models.ReportSchedule{}).
		Where("id = ? AND enabled = ? AND next_run = ?", id, true, expected.UTC()).
		Update("next_run", next.UTC())
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim schedule %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (st *GormStore) RecordResult(ctx context.Context, id string, result Result) error {
	errMsg := ""
	if result.Status == models.RunStatusFailed {
		errMsg = truncate(result.Error, maxErrorLength)
		if errMsg == "" {
			errMsg = "unknown error"
		}
	}

	return st.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if result.Status != models.RunStatusSkipped {
			res := tx.Model(&models.ReportSchedule{}).
				Where("id = ?", id).
				Updates(map[string]any{
					"last_run":    result.StartedAt.UTC(),
					"last_status": result.Status,
					"last_error":  errMsg,
				})
			if res.Error != nil {
				return fmt.Errorf("failed to record result for schedule %s: %w", id, res.Error)
			}
			if res.RowsAffected == 0 {
				// deleted while running
				return nil
			}
		} else {
			var count int64
			if err := tx.Model(&models.ReportSchedule{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to look up schedule %s: %w", id, err)
			}
			if count == 0 {
				return nil
			}
		}

		run := &models.ReportRun{
			ScheduleID: id,
			Trigger:    string(result.Trigger),
			StartedAt:  result.StartedAt.UTC(),
			FinishedAt: result.FinishedAt.UTC(),
			Status:     result.Status,
			Error:      truncate(result.Error, maxErrorLength),
			Recipients: result.Recipients,
			ReportType: result.ReportType,
		}
		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("failed to append run for schedule %s: %w", id, err)
		}
		return nil
	})
}

func (st *GormStore) ListRuns(ctx context.Context, scheduleID string, limit int) ([]models.ReportRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []models.ReportRun
	err := st.db.WithContext(ctx).
		Where("schedule_id = ?", scheduleID).
		Order("started_at desc").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list runs of schedule %s: %w", scheduleID, err)
	}
	return runs, nil
}

// normalizeTimes stores instants in UTC so next_run comparisons in SQL order correctly.
func normalizeTimes(s *models.ReportSchedule) {
	if s.NextRun != nil {
		t := s.NextRun.UTC()
		s.NextRun = &t
	}
	if s.LastRun != nil {
		t := s.LastRun.UTC()
		s.LastRun = &t
	}
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
