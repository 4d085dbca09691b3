package reports

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	monitoringservice "github.com/charles-forsyth/skywalker/gcp/services/monitoringService"
	"github.com/charles-forsyth/skywalker/gcp/shared"
	"github.com/charles-forsyth/skywalker/internal"
	"github.com/spf13/afero"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var reportFuncs = template.FuncMap{
	"formatBytes": shared.FormatBytes,
	"formatDate": func(v string) string {
		if len(v) >= 10 {
			return v[:10]
		}
		return v
	},
	"pct": func(v *float64) string {
		if v == nil {
			return "N/A"
		}
		return fmt.Sprintf("%.1f%%", *v)
	},
	"yesno": shared.BoolToYesNo,
}

var reportTemplates = template.Must(
	template.New("reports").Funcs(reportFuncs).ParseFS(templateFS, "templates/*.tmpl"),
)

// RenderAuditHTML renders the consolidated audit report for one or more
// projects as a standalone HTML document.
func RenderAuditHTML(projects []ProjectAuditReport) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Projects []ProjectAuditReport
		ScanTime string
	}{
		Projects: projects,
		ScanTime: time.Now().Format("2006-01-02 15:04:05"),
	}
	if err := reportTemplates.ExecuteTemplate(&buf, "audit.html.tmpl", data); err != nil {
		return "", fmt.Errorf("failed to render audit report: %w", err)
	}
	return buf.String(), nil
}

// RenderFleetHTML renders the fleet utilization dashboard.
func RenderFleetHTML(samples []monitoringservice.FleetSample, scopingProject string) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Samples        []monitoringservice.FleetSample
		ScopingProject string
		ScanTime       string
	}{
		Samples:        samples,
		ScopingProject: scopingProject,
		ScanTime:       time.Now().Format("2006-01-02 15:04:05"),
	}
	if err := reportTemplates.ExecuteTemplate(&buf, "fleet.html.tmpl", data); err != nil {
		return "", fmt.Errorf("failed to render fleet report: %w", err)
	}
	return buf.String(), nil
}

// WriteHTMLFile writes rendered HTML to disk.
func WriteHTMLFile(path, html string) error {
	return afero.WriteFile(internal.OutputFS, path, []byte(html), 0644)
}
