package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pyneda/consentscan/pkg/scan/queue"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	scanPriority  int
	scanLocale    string
	scanRequestID string
	scanNotify    string
	scanJSON      bool
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <url>",
	Short: "Queue a compliance scan for a website",
	Long: `Queue a compliance scan. The job is picked up by a running worker
(consentscan worker start or consentscan api).

Examples:
  consentscan scan example.com
  consentscan scan https://shop.example --priority 5 --locale de`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		logger := log.With().Str("type", "scan").Logger()
		sm := newScanManager(logger)
		defer sm.Stop()

		spec := queue.JobSpec{
			URL:      args[0],
			Priority: scanPriority,
			Locale:   scanLocale,
		}
		if scanRequestID != "" {
			spec.RequestID = &scanRequestID
		}
		if scanNotify != "" {
			spec.NotifyEmail = &scanNotify
		}

		status, err := sm.Queue().AddJob(context.Background(), spec)
		exitOnError(err, "Failed to queue scan")
		printJobStatus(status, scanJSON)
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().IntVarP(&scanPriority, "priority", "p", 0, "Job priority, higher runs first")
	scanCmd.Flags().StringVarP(&scanLocale, "locale", "l", "", "Report locale (defaults to queue.default_locale)")
	scanCmd.Flags().StringVar(&scanRequestID, "request-id", "", "External request identifier stored with the job and report")
	scanCmd.Flags().StringVar(&scanNotify, "notify", "", "Address notified when the scan finishes")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print the job status as JSON")
}

func printJobStatus(status *queue.JobStatus, asJSON bool) {
	if asJSON {
		data, err := json.MarshalIndent(status, "", "  ")
		exitOnError(err, "Failed to encode job status")
		fmt.Println(string(data))
		return
	}
	printStatusFields(status)
}
