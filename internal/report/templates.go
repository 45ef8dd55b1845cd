package report

import "github.com/assetdesk/internal/models"

const layoutTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="font-family: sans-serif">
<h2>{{.Title}}</h2>
<p>Scope: {{if .Scope}}{{.Scope}}{{else}}All departments{{end}}<br>
Generated: {{.GeneratedAt.Format "2006-01-02 15:04 MST"}}</p>
<table border="1" cellpadding="4" cellspacing="0">
{{range .Summary}}<tr><th align="left">{{.Label}}</th><td>{{.Value}}</td></tr>
{{end}}</table>
{{template "body" .}}
</body>
</html>
`

var reportTemplates = map[models.ReportType]string{
	models.ReportTypeAssetInventory: `{{define "body"}}
<h3>Assets</h3>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Tag</th><th>Name</th><th>Category</th><th>Status</th><th>Location</th><th>Department</th></tr>
{{range .Assets}}<tr><td>{{.Tag}}</td><td>{{.Name}}</td><td>{{.Category}}</td><td>{{.Status}}</td><td>{{.Location}}</td><td>{{.Department}}</td></tr>
{{else}}<tr><td colspan="6">No assets</td></tr>
{{end}}</table>
{{end}}`,

	models.ReportTypeLicenseCompliance: `{{define "body"}}
<h3>Licenses</h3>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Name</th><th>Vendor</th><th>Seats</th><th>Used</th><th>Available</th><th>Expires</th><th>Flags</th></tr>
{{range .Licenses}}<tr><td>{{.Name}}</td><td>{{.Vendor}}</td><td>{{.Seats}}</td><td>{{.SeatsUsed}}</td><td>{{.Available}}</td><td>{{if .ExpiresAt}}{{.ExpiresAt.Format "2006-01-02"}}{{else}}-{{end}}</td><td>{{if .Overused}}OVER-ALLOCATED {{end}}{{if .Expiring}}EXPIRING{{end}}</td></tr>
{{else}}<tr><td colspan="7">No licenses</td></tr>
{{end}}</table>
{{end}}`,

	models.ReportTypeAssignment: `{{define "body"}}
<h3>Active assignments</h3>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Employee</th><th>Department</th><th>Asset</th><th>Tag</th><th>Since</th></tr>
{{range .Assignments}}<tr><td>{{.EmployeeName}}</td><td>{{.Department}}</td><td>{{.Asset.Name}}</td><td>{{.Asset.Tag}}</td><td>{{.AssignedAt.Format "2006-01-02"}}</td></tr>
{{else}}<tr><td colspan="5">No active assignments</td></tr>
{{end}}</table>
{{end}}`,
}
