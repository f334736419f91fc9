package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/pyneda/consentscan/db"
	"github.com/pyneda/consentscan/lib"
	"github.com/pyneda/consentscan/pkg/report"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var runSave bool

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <url>",
	Short: "Scan a website right away without queueing",
	Long: `Run a single scan in this process and print a summary. Useful to try
out configuration changes. Use --save to store the report like a queued scan would.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		logger := log.With().Str("type", "run").Logger()
		sm := newScanManager(logger)
		defer sm.Stop()

		ctx, cancel := signalContext()
		defer cancel()

		result, err := sm.ScanNow(ctx, args[0])
		exitOnError(err, "Scan failed")
		printScanSummary(result)

		if runSave {
			id, err := db.Connection().SaveScanResult(ctx, result, nil)
			exitOnError(err, "Failed to save report")
			fmt.Println(lib.Label("Report saved: ") + lib.Ok(id))
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runSave, "save", false, "Store the report in the database")
}

func printScanSummary(result *report.ScanResult) {
	var sb strings.Builder
	sb.WriteString(lib.Label("URL: ") + result.URL + "\n")
	sb.WriteString(lib.Label("Duration: ") + result.Duration.Round(time.Millisecond).String() + "\n")
	sb.WriteString(lib.Label("Score: ") + fmt.Sprintf("%d/100", result.Score) + "\n")
	sb.WriteString(lib.Label("Risk: ") + lib.ColorizeRisk(result.RiskLevel.String()) + "\n")
	sb.WriteString(lib.Label("Consent banner: ") + fmt.Sprintf("%t", result.ConsentBanner.Found) + "\n")
	sb.WriteString(lib.Label("Cookies: ") + fmt.Sprintf("%d", len(result.Cookies)) + "\n")
	sb.WriteString(lib.Label("Trackers: ") + fmt.Sprintf("%d", len(result.Trackers)) + "\n")
	sb.WriteString(lib.Label("Third-party requests: ") + fmt.Sprintf("%d", len(result.ThirdPartyRequests)) + "\n")
	fmt.Print(sb.String())

	if len(result.Issues) == 0 {
		fmt.Println(lib.Ok("No issues found"))
		return
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Risk", "Code", "Title"})
	table.SetBorder(true)
	table.SetAutoWrapText(false)
	for _, issue := range report.SortIssues(result.Issues) {
		table.Append([]string{lib.ColorizeRisk(issue.Risk.String()), issue.Code, issue.Title})
	}
	table.Render()
}
