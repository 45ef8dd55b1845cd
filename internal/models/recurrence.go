package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxDayOfMonth caps monthly and quarterly schedules so every month has the configured day.
const MaxDayOfMonth = 28

// TimeOfDay is a wall-clock hour and minute in the deployment timezone.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (24h).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[0]) > 2 || len(parts[1]) != 2 {
		return TimeOfDay{}, fmt.Errorf("expected HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, fmt.Errorf("hour out of range in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("minute out of range in %q", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Recurrence is one of Daily, Weekly, Monthly or Quarterly.
type Recurrence interface {
	Frequency() Frequency
	At() TimeOfDay
	isRecurrence()
}

type Daily struct {
	Time TimeOfDay
}

type Weekly struct {
	Time    TimeOfDay
	Weekday time.Weekday
}

type Monthly struct {
	Time TimeOfDay
	Day  int
}

// Quarterly fires on Day of January, April, July and October.
type Quarterly struct {
	Time TimeOfDay
	Day  int
}

func (Daily) Frequency() Frequency     { return FrequencyDaily }
func (Weekly) Frequency() Frequency    { return FrequencyWeekly }
func (Monthly) Frequency() Frequency   { return FrequencyMonthly }
func (Quarterly) Frequency() Frequency { return FrequencyQuarterly }

func (r Daily) At() TimeOfDay     { return r.Time }
func (r Weekly) At() TimeOfDay    { return r.Time }
func (r Monthly) At() TimeOfDay   { return r.Time }
func (r Quarterly) At() TimeOfDay { return r.Time }

func (Daily) isRecurrence()     {}
func (Weekly) isRecurrence()    {}
func (Monthly) isRecurrence()   {}
func (Quarterly) isRecurrence() {}

// Recurrence builds the typed recurrence from the persisted columns. Fields that do not
// belong to the frequency must be unset.
func (s *ReportSchedule) Recurrence() (Recurrence, error) {
	at, err := ParseTimeOfDay(s.TimeOfDay)
	if err != nil {
		return nil, &ValidationError{Field: "time_of_day", Reason: err.Error()}
	}

	switch s.Frequency {
	case FrequencyDaily:
		if s.DayOfWeek != nil {
			return nil, &ValidationError{Field: "day_of_week", Reason: "only allowed for weekly schedules"}
		}
		if s.DayOfMonth != nil {
			return nil, &ValidationError{Field: "day_of_month", Reason: "only allowed for monthly or quarterly schedules"}
		}
		return Daily{Time: at}, nil

	case FrequencyWeekly:
		if s.DayOfMonth != nil {
			return nil, &ValidationError{Field: "day_of_month", Reason: "only allowed for monthly or quarterly schedules"}
		}
		if s.DayOfWeek == nil {
			return nil, &ValidationError{Field: "day_of_week", Reason: "required for weekly schedules"}
		}
		if *s.DayOfWeek < 0 || *s.DayOfWeek > 6 {
			return nil, &ValidationError{Field: "day_of_week", Reason: fmt.Sprintf("must be 0-6, got %d", *s.DayOfWeek)}
		}
		return Weekly{Time: at, Weekday: time.Weekday(*s.DayOfWeek)}, nil

	case FrequencyMonthly, FrequencyQuarterly:
		if s.DayOfWeek != nil {
			return nil, &ValidationError{Field: "day_of_week", Reason: "only allowed for weekly schedules"}
		}
		if s.DayOfMonth == nil {
			return nil, &ValidationError{Field: "day_of_month", Reason: fmt.Sprintf("required for %s schedules", s.Frequency)}
		}
		if *s.DayOfMonth < 1 || *s.DayOfMonth > MaxDayOfMonth {
			return nil, &ValidationError{Field: "day_of_month", Reason: fmt.Sprintf("must be 1-%d, got %d", MaxDayOfMonth, *s.DayOfMonth)}
		}
		if s.Frequency == FrequencyMonthly {
			return Monthly{Time: at, Day: *s.DayOfMonth}, nil
		}
		return Quarterly{Time: at, Day: *s.DayOfMonth}, nil

	default:
		return nil, &ValidationError{Field: "frequency", Reason: fmt.Sprintf("unknown frequency %q", s.Frequency)}
	}
}

// SetRecurrence writes r back into the persisted columns.
func (s *ReportSchedule) SetRecurrence(r Recurrence) {
	s.Frequency = r.Frequency()
	s.TimeOfDay = r.At().String()
	s.DayOfWeek = nil
	s.DayOfMonth = nil

	switch v := r.(type) {
	case Weekly:
		d := int(v.Weekday)
		s.DayOfWeek = &d
	case Monthly:
		d := v.Day
		s.DayOfMonth = &d
	case Quarterly:
		d := v.Day
		s.DayOfMonth = &d
	}
}
