package scheduler

import (
	"fmt"
	"time"

	"github.com/assetdesk/internal/models"
)

// NextRun returns the first instant strictly after from at which rec fires, with the
// wall-clock time interpreted in loc. It has no side effects.
func NextRun(rec models.Recurrence, from time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	local := from.In(loc)
	y, m, d := local.Date()
	at := rec.At()

	on := func(year int, month time.Month, day int) time.Time {
		// time.Date normalises overflow (day 32, month 13) into the next month/year.
		return wallClock(year, month, day, at, loc)
	}

	var next time.Time
	switch r := rec.(type) {
	case models.Daily:
		next = on(y, m, d)
		if !next.After(from) {
			next = on(y, m, d+1)
		}

	case models.Weekly:
		ahead := (int(r.Weekday) - int(local.Weekday()) + 7) % 7
		next = on(y, m, d+ahead)
		if !next.After(from) {
			next = on(y, m, d+ahead+7)
		}

	case models.Monthly:
		next = on(y, m, r.Day)
		if !next.After(from) {
			next = on(y, m+1, r.Day)
		}

	case models.Quarterly:
		anchor := quarterStart(m)
		next = on(y, anchor, r.Day)
		if !next.After(from) {
			next = on(y, anchor+3, r.Day)
		}

	default:
		return time.Time{}, fmt.Errorf("unsupported recurrence %T", rec)
	}

	return next, nil
}

// wallClock returns at on the given day in loc. A wall-clock time skipped by a
// spring-forward transition resolves to the instant just after the gap, e.g. 02:30
// becomes 03:30 when clocks jump from 02:00 to 03:00.
func wallClock(year int, month time.Month, day int, at models.TimeOfDay, loc *time.Location) time.Time {
	t := time.Date(year, month, day, at.Hour, at.Minute, 0, 0, loc)
	if t.Hour() == at.Hour && t.Minute() == at.Minute {
		return t
	}

	naive := time.Date(year, month, day, at.Hour, at.Minute, 0, 0, time.UTC)
	_, before := naive.Add(-12 * time.Hour).In(loc).Zone()
	_, after := naive.Add(12 * time.Hour).In(loc).Zone()
	offset := before
	if after < offset {
		offset = after
	}
	return naive.Add(-time.Duration(offset) * time.Second).In(loc)
}

// quarterStart returns the first month of the calendar quarter containing m.
func quarterStart(m time.Month) time.Month {
	return time.Month((int(m)-1)/3*3 + 1)
}

// NextRunFor computes the next run of a persisted schedule.
func NextRunFor(s *models.ReportSchedule, from time.Time, loc *time.Location) (time.Time, error) {
	rec, err := s.Recurrence()
	if err != nil {
		return time.Time{}, err
	}
	return NextRun(rec, from, loc)
}
