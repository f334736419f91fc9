package report

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

//go:embed templates/*
var templates embed.FS

type ReportFormat string

const (
	ReportFormatHTML ReportFormat = "html"
	ReportFormatJSON ReportFormat = "json"
)

// ErrInvalidFormat is returned for unknown report formats
var ErrInvalidFormat = errors.New("invalid report format")

type ReportOptions struct {
	Title    string
	ReportID string
	Result   *ScanResult
	Format   ReportFormat
}

// HTMLReportData is passed to the html template
type HTMLReportData struct {
	Title       string
	ReportID    string
	Result      *ScanResult
	IssueCounts map[string]int
	Issues      []Issue
	GeneratedAt string
}

func GenerateReport(options ReportOptions, w io.Writer) error {
	if options.Result == nil {
		return errors.New("no scan result to render")
	}
	switch options.Format {
	case ReportFormatHTML:
		return generateHTMLReport(options, w)
	case ReportFormatJSON:
		return generateJSONReport(options, w)
	default:
		return ErrInvalidFormat
	}
}

func generateHTMLReport(options ReportOptions, w io.Writer) error {
	funcMap := template.FuncMap{
		"riskClass": func(r RiskLevel) string { return "risk-" + string(r) },
		"duration":  func(d time.Duration) string { return d.Round(time.Millisecond).String() },
	}

	tmpl, err := template.New("report.tmpl").Funcs(funcMap).ParseFS(templates, "templates/report.tmpl")
	if err != nil {
		log.Error().Err(err).Msg("Failed to parse report template")
		return err
	}

	data := HTMLReportData{
		Title:       options.Title,
		ReportID:    options.ReportID,
		Result:      options.Result,
		IssueCounts: issueCountsByName(options.Result.Issues),
		Issues:      SortIssues(options.Result.Issues),
		GeneratedAt: time.Now().Format("2006-01-02 15:04:05"),
	}
	if data.Title == "" {
		data.Title = fmt.Sprintf("Compliance report for %s", options.Result.URL)
	}

	if err := tmpl.Execute(w, data); err != nil {
		log.Error().Err(err).Msg("Failed to execute report template")
		return err
	}
	return nil
}

func generateJSONReport(options ReportOptions, w io.Writer) error {
	data := map[string]interface{}{
		"title":     options.Title,
		"report_id": options.ReportID,
		"result":    options.Result,
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// SortIssues returns a copy of issues ordered from most to least severe,
// keeping the original order among issues of the same level.
func SortIssues(issues []Issue) []Issue {
	sorted := make([]Issue, len(issues))
	copy(sorted, issues)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Risk.Order() > sorted[j].Risk.Order()
	})
	return sorted
}

func issueCountsByName(issues []Issue) map[string]int {
	counts := map[string]int{}
	for level, count := range CountByRisk(issues) {
		counts[string(level)] = count
	}
	return counts
}
