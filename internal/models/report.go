package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReportType string

const (
	ReportTypeAssetInventory    ReportType = "asset-inventory"
	ReportTypeLicenseCompliance ReportType = "license-compliance"
	ReportTypeAssignment        ReportType = "assignment-report"
)

type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
)

type RunStatus string

const (
	RunStatusPending RunStatus = "pending"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
	RunStatusSkipped RunStatus = "skipped"
)

// ReportSchedule is a named recurrence that delivers one report type to a set of recipients.
//
// DayOfWeek and DayOfMonth are the persisted form of the recurrence; use Recurrence()
// to get the typed variant.
type ReportSchedule struct {
	ID         string     `json:"id" gorm:"primaryKey;size:36"`
	Name       string     `json:"name" gorm:"not null"`
	ReportType ReportType `json:"report_type" gorm:"not null"`
	Scope      string     `json:"scope,omitempty"` // empty means all departments
	Frequency  Frequency  `json:"frequency" gorm:"not null"`
	TimeOfDay  string     `json:"time_of_day" gorm:"not null"` // HH:MM in the deployment timezone
	DayOfWeek  *int       `json:"day_of_week"`
	DayOfMonth *int       `json:"day_of_month"`
	Recipients []string   `json:"recipients" gorm:"serializer:json;not null"`
	Enabled    bool       `json:"enabled" gorm:"index:idx_schedule_due,priority:1"`
	NextRun    *time.Time `json:"next_run" gorm:"index:idx_schedule_due,priority:2"`
	LastRun    *time.Time `json:"last_run"`
	LastStatus RunStatus  `json:"last_status" gorm:"default:pending"`
	LastError  string     `json:"last_error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (s *ReportSchedule) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.LastStatus == "" {
		s.LastStatus = RunStatusPending
	}
	return nil
}

// ReportRun records one execution attempt of a schedule.
type ReportRun struct {
	ID         string     `json:"id" gorm:"primaryKey;size:36"`
	ScheduleID string     `json:"schedule_id" gorm:"index;not null"`
	Trigger    string     `json:"trigger" gorm:"not null"`
	StartedAt  time.Time  `json:"started_at" gorm:"index"`
	FinishedAt time.Time  `json:"finished_at"`
	Status     RunStatus  `json:"status" gorm:"not null"`
	Error      string     `json:"error,omitempty"`
	Recipients []string   `json:"recipients" gorm:"serializer:json"`
	ReportType ReportType `json:"report_type"`
}

func (r *ReportRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// ScheduleInput is the writable part of a schedule as accepted by the API.
type ScheduleInput struct {
	Name       string     `json:"name"`
	ReportType ReportType `json:"report_type"`
	Scope      string     `json:"scope,omitempty"`
	Frequency  Frequency  `json:"frequency"`
	TimeOfDay  string     `json:"time_of_day"`
	DayOfWeek  *int       `json:"day_of_week,omitempty"`
	DayOfMonth *int       `json:"day_of_month,omitempty"`
	Recipients []string   `json:"recipients"`
	Enabled    *bool      `json:"enabled,omitempty"` // defaults to true on create, unchanged on update
}

func (in *ScheduleInput) ToSchedule() *ReportSchedule {
	enabled := true
	if in.Enabled != nil {
		enabled = *in.Enabled
	}
	return &ReportSchedule{
		Name:       in.Name,
		ReportType: in.ReportType,
		Scope:      in.Scope,
		Frequency:  in.Frequency,
		TimeOfDay:  in.TimeOfDay,
		DayOfWeek:  in.DayOfWeek,
		DayOfMonth: in.DayOfMonth,
		Recipients: in.Recipients,
		Enabled:    enabled,
	}
}

// ApplyTo returns current's definition replaced by in. An absent enabled flag keeps
// current's state.
func (in *ScheduleInput) ApplyTo(current *ReportSchedule) *ReportSchedule {
	s := in.ToSchedule()
	if in.Enabled == nil {
		s.Enabled = current.Enabled
	}
	return s
}
