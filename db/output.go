package db

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/pyneda/consentscan/lib"
)

// PrintMaxURLLength max length a URL can have when printing as table
const PrintMaxURLLength = 65

// PrintScanJobTable prints a list of scan jobs as a table
func PrintScanJobTable(jobs []*ScanJob) {
	writeScanJobTable(os.Stdout, jobs)
}

func writeScanJobTable(w io.Writer, jobs []*ScanJob) {
	var tableData [][]string
	for _, job := range jobs {
		tableData = append(tableData, job.TableRow())
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader(ScanJob{}.TableHeaders())
	table.SetBorder(true)
	table.AppendBulk(tableData)
	table.Render()
}

// PrintScanJobStats prints per status job counts as a table
func PrintScanJobStats(stats map[ScanJobStatus]int64) {
	var tableData [][]string
	var total int64
	for _, status := range ScanJobStatuses {
		tableData = append(tableData, []string{string(status), fmt.Sprintf("%d", stats[status])})
		total += stats[status]
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Status", "Jobs"})
	table.SetFooter([]string{"Total", fmt.Sprintf("%d", total)})
	table.SetBorder(true)
	table.AppendBulk(tableData)
	table.Render()
}

// PrintScanJob prints a single job with coloured labels
func PrintScanJob(job *ScanJob, position int) {
	var sb strings.Builder
	sb.WriteString(lib.Label("ID: ") + job.ID + "\n")
	sb.WriteString(lib.Label("URL: ") + job.URL + "\n")
	sb.WriteString(lib.Label("Status: ") + string(job.Status) + "\n")
	if position > 0 {
		sb.WriteString(lib.Label("Position: ") + fmt.Sprintf("%d", position) + "\n")
	}
	sb.WriteString(lib.Label("Priority: ") + fmt.Sprintf("%d", job.Priority) + "\n")
	sb.WriteString(lib.Label("Progress: ") + fmt.Sprintf("%d%%", job.Progress))
	if job.CurrentStep != "" {
		sb.WriteString(" (" + job.CurrentStep + ")")
	}
	sb.WriteString("\n")
	sb.WriteString(lib.Label("Queued at: ") + job.QueuedAt.Format("2006-01-02 15:04:05") + "\n")
	if job.ReportID != nil {
		sb.WriteString(lib.Label("Report: ") + lib.Ok(*job.ReportID) + "\n")
	}
	if job.Error != nil {
		sb.WriteString(lib.Label("Error: ") + *job.Error + "\n")
	}
	fmt.Print(sb.String())
}
