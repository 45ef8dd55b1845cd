package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sort"
	"time"

	"github.com/assetdesk/internal/models"
	"gorm.io/gorm"
)

// Report is rendered content ready to be mailed.
type Report struct {
	Type        models.ReportType
	Scope       string
	Subject     string
	HTML        string
	GeneratedAt time.Time
}

type ReportGenerator struct {
	db        *gorm.DB
	templates map[models.ReportType]*template.Template
	now       func() time.Time
}

type reportData struct {
	Title       string
	Scope       string
	GeneratedAt time.Time
	Summary     []summaryLine
	Assets      []models.Asset
	Licenses    []licenseLine
	Assignments []models.Assignment
}

type summaryLine struct {
	Label string
	Value string
}

type licenseLine struct {
	models.License
	Available int
	Overused  bool
	Expiring  bool
}

// expiryWindow flags licenses that expire soon in the compliance report.
const expiryWindow = 30 * 24 * time.Hour

func NewReportGenerator(db *gorm.DB) (*ReportGenerator, error) {
	templates := make(map[models.ReportType]*template.Template)
	for reportType, body := range reportTemplates {
		tmpl, err := template.New(string(reportType)).Parse(layoutTemplate + body)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s report template: %w", reportType, err)
		}
		templates[reportType] = tmpl
	}

	return &ReportGenerator{
		db:        db,
		templates: templates,
		now:       time.Now,
	}, nil
}

// GenerateReport renders reportType for scope. scope is a department name; empty means
// every department.
func (g *ReportGenerator) GenerateReport(ctx context.Context, reportType models.ReportType, scope string) (*Report, error) {
	tmpl, ok := g.templates[reportType]
	if !ok {
		return nil, fmt.Errorf("unknown report type: %s", reportType)
	}

	data := &reportData{
		Title:       reportTitle(reportType),
		Scope:       scope,
		GeneratedAt: g.now(),
	}

	var err error
	switch reportType {
	case models.ReportTypeAssetInventory:
		err = g.collectAssets(ctx, data)
	case models.ReportTypeLicenseCompliance:
		err = g.collectLicenses(ctx, data)
	case models.ReportTypeAssignment:
		err = g.collectAssignments(ctx, data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to collect report data: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}

	scopeLabel := scope
	if scopeLabel == "" {
		scopeLabel = "All departments"
	}

	return &Report{
		Type:        reportType,
		Scope:       scope,
		Subject:     fmt.Sprintf("AssetDesk %s - %s (%s)", data.Title, scopeLabel, data.GeneratedAt.Format("2006-01-02")),
		HTML:        buf.String(),
		GeneratedAt: data.GeneratedAt,
	}, nil
}

func (g *ReportGenerator) scoped(ctx context.Context, scope string) *gorm.DB {
	query := g.db.WithContext(ctx)
	if scope != "" {
		query = query.Where("department = ?", scope)
	}
	return query
}

func (g *ReportGenerator) collectAssets(ctx context.Context, data *reportData) error {
	if err := g.scoped(ctx, data.Scope).Order("category, tag").Find(&data.Assets).Error; err != nil {
		return err
	}

	byStatus := make(map[models.AssetStatus]int)
	var totalCost float64
	for _, a := range data.Assets {
		byStatus[a.Status]++
		totalCost += a.Cost
	}

	data.Summary = append(data.Summary, summaryLine{"Total assets", fmt.Sprint(len(data.Assets))})
	statuses := make([]string, 0, len(byStatus))
	for s := range byStatus {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		data.Summary = append(data.Summary, summaryLine{"Status " + s, fmt.Sprint(byStatus[models.AssetStatus(s)])})
	}
	data.Summary = append(data.Summary, summaryLine{"Total book value", fmt.Sprintf("%.2f", totalCost)})
	return nil
}

func (g *ReportGenerator) collectLicenses(ctx context.Context, data *reportData) error {
	var licenses []models.License
	if err := g.scoped(ctx, data.Scope).Order("name").Find(&licenses).Error; err != nil {
		return err
	}

	overused, expiring := 0, 0
	for _, l := range licenses {
		line := licenseLine{
			License:   l,
			Available: l.Seats - l.SeatsUsed,
			Overused:  l.SeatsUsed > l.Seats,
			Expiring:  l.ExpiresAt != nil && l.ExpiresAt.Sub(data.GeneratedAt) < expiryWindow,
		}
		if line.Overused {
			overused++
		}
		if line.Expiring {
			expiring++
		}
		data.Licenses = append(data.Licenses, line)
	}

	data.Summary = []summaryLine{
		{"Licenses", fmt.Sprint(len(licenses))},
		{"Over-allocated", fmt.Sprint(overused)},
		{"Expired or expiring within 30 days", fmt.Sprint(expiring)},
	}
	return nil
}

func (g *ReportGenerator) collectAssignments(ctx context.Context, data *reportData) error {
	err := g.scoped(ctx, data.Scope).
		Preload("Asset").
		Where("returned_at IS NULL").
		Order("assigned_at desc").
		Find(&data.Assignments).Error
	if err != nil {
		return err
	}

	employees := make(map[string]struct{})
	for _, a := range data.Assignments {
		employees[a.EmployeeName] = struct{}{}
	}
	data.Summary = []summaryLine{
		{"Active assignments", fmt.Sprint(len(data.Assignments))},
		{"Employees holding assets", fmt.Sprint(len(employees))},
	}
	return nil
}

func reportTitle(t models.ReportType) string {
	switch t {
	case models.ReportTypeAssetInventory:
		return "Asset Inventory"
	case models.ReportTypeLicenseCompliance:
		return "License Compliance"
	case models.ReportTypeAssignment:
		return "Assignment Report"
	default:
		return string(t)
	}
}
