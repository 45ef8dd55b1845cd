package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/assetdesk/internal/database"
	"github.com/assetdesk/internal/models"
	"github.com/assetdesk/internal/report"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.CloseDB(db) })
	return NewGormStore(db)
}

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

// weeklySchedule returns a valid enabled schedule firing Mondays at 08:00.
func weeklySchedule(name string) *models.ReportSchedule {
	return &models.ReportSchedule{
		Name:       name,
		ReportType: models.ReportTypeAssetInventory,
		Frequency:  models.FrequencyWeekly,
		TimeOfDay:  "08:00",
		DayOfWeek:  intPtr(1),
		Recipients: []string{"it-ops@example.com", "cfo@example.com"},
		Enabled:    true,
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type fakeGenerator struct {
	mu      sync.Mutex
	calls   int
	err     error
	panics  bool
	release chan struct{} // when set, GenerateReport blocks until it is closed
	started chan struct{}
}

func (g *fakeGenerator) GenerateReport(ctx context.Context, reportType models.ReportType, scope string) (*report.Report, error) {
	g.mu.Lock()
	g.calls++
	release, started := g.release, g.started
	g.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.panics {
		panic("template exploded")
	}
	if g.err != nil {
		return nil, g.err
	}
	return &report.Report{Type: reportType, Scope: scope, Subject: "report", HTML: "<p>ok</p>"}, nil
}

func (g *fakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeDeliverer struct {
	mu      sync.Mutex
	sent    [][]string
	err     error
	panics  bool
	release chan struct{} // when set, Deliver blocks until it is closed, ignoring ctx like an SMTP session
	started chan struct{}
}

func (d *fakeDeliverer) Deliver(ctx context.Context, recipients []string, r *report.Report) error {
	if d.started != nil {
		d.started <- struct{}{}
	}
	if d.release != nil {
		<-d.release
	}
	if d.panics {
		panic("smtp client exploded")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, recipients)
	return nil
}

func (d *fakeDeliverer) Sent() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type fakeNotifier struct {
	mu       sync.Mutex
	failures []string
}

func (n *fakeNotifier) NotifyFailure(ctx context.Context, s *models.ReportSchedule, runErr error) error {
	n.mu.Lock()
	n.failures = append(n.failures, s.ID+": "+runErr.Error())
	n.mu.Unlock()
	return nil
}
