package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pyneda/consentscan/db"
	"github.com/pyneda/consentscan/lib"
	"github.com/pyneda/consentscan/pkg/report"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	reportTitle  string
	reportFormat string
	reportOutput string
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report <report-id>",
	Short: "Export a saved scan report",
	Long: `Export a saved scan report as JSON or HTML. When no output file is given
the file name is derived from the scanned URL.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		format, err := toReportFormat(reportFormat)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		saved, err := db.Connection().GetScanReport(context.Background(), args[0])
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Printf("Report %s not found\n", args[0])
			os.Exit(1)
		}
		exitOnError(err, "Failed to load report")

		result, err := saved.ScanResult()
		exitOnError(err, "Failed to decode report")

		if reportTitle == "" {
			reportTitle = fmt.Sprintf("Compliance report for %s", saved.URL)
		}
		if reportOutput == "" {
			reportOutput = fmt.Sprintf("%s-report.%s", lib.Slugify(saved.URL), reportFormat)
		}

		file, err := os.Create(reportOutput)
		exitOnError(err, "Could not create report file")
		defer file.Close()

		err = report.GenerateReport(report.ReportOptions{
			Title:    reportTitle,
			ReportID: saved.ID,
			Result:   result,
			Format:   format,
		}, file)
		exitOnError(err, "Failed to generate report")
		log.Info().Str("file", reportOutput).Str("format", reportFormat).Msg("Report generated")
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "html", "Report format (html, json)")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "Output file")
	reportCmd.Flags().StringVarP(&reportTitle, "title", "t", "", "Report title")
}

func toReportFormat(format string) (report.ReportFormat, error) {
	switch strings.ToLower(format) {
	case "html":
		return report.ReportFormatHTML, nil
	case "json":
		return report.ReportFormatJSON, nil
	default:
		return "", fmt.Errorf("invalid report format %q, use html or json", format)
	}
}
