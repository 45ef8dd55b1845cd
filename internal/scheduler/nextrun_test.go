package scheduler

import (
	"testing"
	"time"

	"github.com/assetdesk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(h, m int) models.TimeOfDay {
	return models.TimeOfDay{Hour: h, Minute: m}
}

func utc(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func TestNextRunExamples(t *testing.T) {
	// 2024-01-15 is a Monday.
	tests := []struct {
		name string
		rec  models.Recurrence
		from time.Time
		want time.Time
	}{
		{"daily before time of day", models.Daily{Time: at(8, 0)}, utc(2024, 1, 15, 7, 0), utc(2024, 1, 15, 8, 0)},
		{"daily after time of day", models.Daily{Time: at(8, 0)}, utc(2024, 1, 15, 9, 0), utc(2024, 1, 16, 8, 0)},
		{"daily exactly at time of day", models.Daily{Time: at(8, 0)}, utc(2024, 1, 15, 8, 0), utc(2024, 1, 16, 8, 0)},
		{"daily across year end", models.Daily{Time: at(8, 0)}, utc(2024, 12, 31, 9, 0), utc(2025, 1, 1, 8, 0)},

		{"weekly same day passed", models.Weekly{Time: at(8, 0), Weekday: time.Monday}, utc(2024, 1, 15, 10, 0), utc(2024, 1, 22, 8, 0)},
		{"weekly same day upcoming", models.Weekly{Time: at(8, 0), Weekday: time.Monday}, utc(2024, 1, 15, 6, 0), utc(2024, 1, 15, 8, 0)},
		{"weekly later in week", models.Weekly{Time: at(8, 0), Weekday: time.Friday}, utc(2024, 1, 15, 10, 0), utc(2024, 1, 19, 8, 0)},
		{"weekly earlier in week", models.Weekly{Time: at(8, 0), Weekday: time.Sunday}, utc(2024, 1, 15, 10, 0), utc(2024, 1, 21, 8, 0)},

		{"monthly mid month", models.Monthly{Time: at(8, 0), Day: 1}, utc(2024, 1, 15, 12, 0), utc(2024, 2, 1, 8, 0)},
		{"monthly later this month", models.Monthly{Time: at(8, 0), Day: 20}, utc(2024, 1, 15, 12, 0), utc(2024, 1, 20, 8, 0)},
		{"monthly day 28 into february", models.Monthly{Time: at(8, 0), Day: 28}, utc(2024, 1, 28, 9, 0), utc(2024, 2, 28, 8, 0)},
		{"monthly across year end", models.Monthly{Time: at(8, 0), Day: 5}, utc(2024, 12, 6, 0, 0), utc(2025, 1, 5, 8, 0)},

		{"quarterly first day upcoming", models.Quarterly{Time: at(8, 0), Day: 1}, utc(2024, 1, 1, 7, 0), utc(2024, 1, 1, 8, 0)},
		{"quarterly inside quarter", models.Quarterly{Time: at(8, 0), Day: 1}, utc(2024, 2, 10, 0, 0), utc(2024, 4, 1, 8, 0)},
		{"quarterly last month of quarter", models.Quarterly{Time: at(8, 0), Day: 15}, utc(2024, 6, 30, 0, 0), utc(2024, 7, 15, 8, 0)},
		{"quarterly across year end", models.Quarterly{Time: at(8, 0), Day: 1}, utc(2024, 11, 20, 0, 0), utc(2025, 1, 1, 8, 0)},
		{"quarterly day not reached in first month", models.Quarterly{Time: at(8, 0), Day: 10}, utc(2024, 10, 3, 0, 0), utc(2024, 10, 10, 8, 0)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NextRun(tc.rec, tc.from, time.UTC)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "want %s, got %s", tc.want, got)
		})
	}
}

func TestNextRunUsesLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 12:00 UTC is 07:00 in New York on 2024-01-15.
	got, err := NextRun(models.Daily{Time: at(8, 0)}, utc(2024, 1, 15, 12, 0), ny)
	require.NoError(t, err)
	assert.True(t, utc(2024, 1, 15, 13, 0).Equal(got), "got %s", got)

	// Spring forward: the day is 23 hours long but the report still goes out at 08:00 local.
	from := time.Date(2024, 3, 9, 9, 0, 0, 0, ny)
	got, err = NextRun(models.Daily{Time: at(8, 0)}, from, ny)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 10, 8, 0, 0, 0, ny), got)
	assert.Equal(t, 23*time.Hour, got.Sub(from))

	// 02:30 does not exist on 2026-03-08 in New York; that day fires right after the gap.
	got, err = NextRun(models.Daily{Time: at(2, 30)}, time.Date(2026, 3, 8, 1, 59, 0, 0, ny), ny)
	require.NoError(t, err)
	assert.True(t, utc(2026, 3, 8, 7, 30).Equal(got), "got %s", got)
	assert.Equal(t, "03:30 EDT", got.In(ny).Format("15:04 MST"))

	got, err = NextRun(models.Daily{Time: at(2, 30)}, got, ny)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 9, 2, 30, 0, 0, ny), got)

	// A nil location means UTC.
	got, err = NextRun(models.Daily{Time: at(8, 0)}, utc(2024, 1, 15, 7, 0), nil)
	require.NoError(t, err)
	assert.True(t, utc(2024, 1, 15, 8, 0).Equal(got))
}

func TestNextRunProperties(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	recurrences := []models.Recurrence{
		models.Daily{Time: at(8, 0)},
		models.Daily{Time: at(0, 0)},
		models.Weekly{Time: at(17, 45), Weekday: time.Wednesday},
		models.Weekly{Time: at(6, 15), Weekday: time.Sunday},
		models.Monthly{Time: at(9, 30), Day: 1},
		models.Monthly{Time: at(23, 59), Day: 28},
		models.Quarterly{Time: at(7, 0), Day: 1},
		models.Quarterly{Time: at(12, 0), Day: 14},
	}
	maxGap := map[models.Frequency]time.Duration{
		models.FrequencyDaily:     25 * time.Hour,
		models.FrequencyWeekly:    7*24*time.Hour + time.Hour,
		models.FrequencyMonthly:   31*24*time.Hour + time.Hour,
		models.FrequencyQuarterly: 92*24*time.Hour + time.Hour,
	}

	start := time.Date(2023, 1, 1, 0, 0, 0, 0, ny)
	end := start.AddDate(2, 0, 0)

	for _, rec := range recurrences {
		for from := start; from.Before(end); from = from.Add(7*time.Hour + 13*time.Minute) {
			next, err := NextRun(rec, from, ny)
			require.NoError(t, err)

			require.True(t, next.After(from), "%#v from %s: %s is not after from", rec, from, next)
			require.LessOrEqual(t, next.Sub(from), maxGap[rec.Frequency()], "%#v from %s", rec, from)

			// the same input gives the same answer
			again, err := NextRun(rec, from, ny)
			require.NoError(t, err)
			require.True(t, next.Equal(again))

			// next is itself a fire of rec
			before, err := NextRun(rec, next.Add(-time.Minute), ny)
			require.NoError(t, err)
			require.True(t, next.Equal(before), "%#v from %s: %s is not a fire, next one is %s", rec, from, next, before)

			local := next.In(ny)
			require.Equal(t, rec.At().Hour, local.Hour())
			require.Equal(t, rec.At().Minute, local.Minute())

			switch r := rec.(type) {
			case models.Weekly:
				require.Equal(t, r.Weekday, local.Weekday())
			case models.Monthly:
				require.Equal(t, r.Day, local.Day())
			case models.Quarterly:
				require.Equal(t, r.Day, local.Day())
				require.Contains(t, []time.Month{time.January, time.April, time.July, time.October}, local.Month())
			}
		}
	}
}

func TestNextRunFor(t *testing.T) {
	dom := 1
	s := &models.ReportSchedule{Frequency: models.FrequencyMonthly, TimeOfDay: "08:00", DayOfMonth: &dom}
	got, err := NextRunFor(s, utc(2024, 1, 15, 0, 0), time.UTC)
	require.NoError(t, err)
	assert.True(t, utc(2024, 2, 1, 8, 0).Equal(got))

	s.DayOfMonth = nil
	_, err = NextRunFor(s, utc(2024, 1, 15, 0, 0), time.UTC)
	assert.Error(t, err)
}
