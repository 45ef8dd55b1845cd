package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestParseTimeOfDay(t *testing.T) {
	valid := map[string]TimeOfDay{
		"00:00": {0, 0},
		"08:00": {8, 0},
		"8:05":  {8, 5},
		"23:59": {23, 59},
	}
	for in, want := range valid {
		got, err := ParseTimeOfDay(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "24:00", "12:60", "12", "12:5", "ab:cd", "-1:00", "123:00", "12:00:00"} {
		_, err := ParseTimeOfDay(in)
		assert.Error(t, err, "expected %q to be rejected", in)
	}
}

func TestTimeOfDayString(t *testing.T) {
	assert.Equal(t, "08:05", TimeOfDay{Hour: 8, Minute: 5}.String())
	assert.Equal(t, "23:00", TimeOfDay{Hour: 23}.String())
}

func TestScheduleRecurrence(t *testing.T) {
	t.Run("daily", func(t *testing.T) {
		s := &ReportSchedule{Frequency: FrequencyDaily, TimeOfDay: "09:30"}
		rec, err := s.Recurrence()
		require.NoError(t, err)
		assert.Equal(t, Daily{Time: TimeOfDay{9, 30}}, rec)
	})

	t.Run("weekly", func(t *testing.T) {
		s := &ReportSchedule{Frequency: FrequencyWeekly, TimeOfDay: "09:00", DayOfWeek: intPtr(1)}
		rec, err := s.Recurrence()
		require.NoError(t, err)
		assert.Equal(t, Weekly{Time: TimeOfDay{9, 0}, Weekday: time.Monday}, rec)
	})

	t.Run("monthly", func(t *testing.T) {
		s := &ReportSchedule{Frequency: FrequencyMonthly, TimeOfDay: "07:00", DayOfMonth: intPtr(28)}
		rec, err := s.Recurrence()
		require.NoError(t, err)
		assert.Equal(t, Monthly{Time: TimeOfDay{7, 0}, Day: 28}, rec)
	})

	t.Run("quarterly", func(t *testing.T) {
		s := &ReportSchedule{Frequency: FrequencyQuarterly, TimeOfDay: "06:00", DayOfMonth: intPtr(1)}
		rec, err := s.Recurrence()
		require.NoError(t, err)
		assert.Equal(t, Quarterly{Time: TimeOfDay{6, 0}, Day: 1}, rec)
	})

	invalid := []struct {
		name     string
		schedule ReportSchedule
		field    string
	}{
		{"bad time", ReportSchedule{Frequency: FrequencyDaily, TimeOfDay: "25:00"}, "time_of_day"},
		{"unknown frequency", ReportSchedule{Frequency: "hourly", TimeOfDay: "08:00"}, "frequency"},
		{"daily with weekday", ReportSchedule{Frequency: FrequencyDaily, TimeOfDay: "08:00", DayOfWeek: intPtr(1)}, "day_of_week"},
		{"daily with day of month", ReportSchedule{Frequency: FrequencyDaily, TimeOfDay: "08:00", DayOfMonth: intPtr(1)}, "day_of_month"},
		{"weekly without weekday", ReportSchedule{Frequency: FrequencyWeekly, TimeOfDay: "08:00"}, "day_of_week"},
		{"weekly weekday out of range", ReportSchedule{Frequency: FrequencyWeekly, TimeOfDay: "08:00", DayOfWeek: intPtr(7)}, "day_of_week"},
		{"weekly with day of month", ReportSchedule{Frequency: FrequencyWeekly, TimeOfDay: "08:00", DayOfWeek: intPtr(1), DayOfMonth: intPtr(3)}, "day_of_month"},
		{"monthly without day", ReportSchedule{Frequency: FrequencyMonthly, TimeOfDay: "08:00"}, "day_of_month"},
		{"monthly day 29", ReportSchedule{Frequency: FrequencyMonthly, TimeOfDay: "08:00", DayOfMonth: intPtr(29)}, "day_of_month"},
		{"monthly day 0", ReportSchedule{Frequency: FrequencyMonthly, TimeOfDay: "08:00", DayOfMonth: intPtr(0)}, "day_of_month"},
		{"quarterly with weekday", ReportSchedule{Frequency: FrequencyQuarterly, TimeOfDay: "08:00", DayOfMonth: intPtr(1), DayOfWeek: intPtr(1)}, "day_of_week"},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.schedule.Recurrence()
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr), "expected ValidationError, got %v", err)
			assert.Equal(t, tc.field, vErr.Field)
		})
	}
}

func TestSetRecurrenceRoundTrip(t *testing.T) {
	recurrences := []Recurrence{
		Daily{Time: TimeOfDay{8, 0}},
		Weekly{Time: TimeOfDay{17, 45}, Weekday: time.Sunday},
		Monthly{Time: TimeOfDay{0, 0}, Day: 15},
		Quarterly{Time: TimeOfDay{12, 30}, Day: 28},
	}
	for _, rec := range recurrences {
		s := &ReportSchedule{Frequency: FrequencyMonthly, DayOfWeek: intPtr(3), DayOfMonth: intPtr(9)}
		s.SetRecurrence(rec)

		got, err := s.Recurrence()
		require.NoError(t, err)
		assert.Equal(t, rec, got)
	}
}
