package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pyneda/consentscan/lib"
	"github.com/pyneda/consentscan/pkg/scan/queue"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var statusJSON bool

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the status of a scan job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		logger := log.With().Str("type", "status").Logger()
		sm := newScanManager(logger)
		defer sm.Stop()

		status, err := sm.Queue().GetJobStatus(context.Background(), args[0])
		if errors.Is(err, queue.ErrJobNotFound) {
			fmt.Printf("Scan job %s not found\n", args[0])
			os.Exit(1)
		}
		exitOnError(err, "Failed to get job status")
		printJobStatus(status, statusJSON)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the job status as JSON")
}

func printStatusFields(status *queue.JobStatus) {
	var sb strings.Builder
	sb.WriteString(lib.Label("ID: ") + status.ID + "\n")
	sb.WriteString(lib.Label("URL: ") + status.URL + "\n")
	sb.WriteString(lib.Label("Status: ") + string(status.Status) + "\n")
	if status.Position > 0 {
		sb.WriteString(lib.Label("Position: ") + fmt.Sprintf("%d", status.Position) + "\n")
	}
	sb.WriteString(lib.Label("Priority: ") + fmt.Sprintf("%d", status.Priority) + "\n")
	sb.WriteString(lib.Label("Progress: ") + fmt.Sprintf("%d%%", status.Progress))
	if status.CurrentStep != "" {
		sb.WriteString(" (" + status.CurrentStep + ")")
	}
	sb.WriteString("\n")
	sb.WriteString(lib.Label("Queued at: ") + status.QueuedAt.Format("2006-01-02 15:04:05") + "\n")
	if status.CompletedAt != nil {
		sb.WriteString(lib.Label("Completed at: ") + status.CompletedAt.Format("2006-01-02 15:04:05") + "\n")
	}
	if status.ReportID != nil {
		sb.WriteString(lib.Label("Report: ") + lib.Ok(*status.ReportID) + "\n")
	}
	if status.Error != nil {
		sb.WriteString(lib.Label("Error: ") + *status.Error + "\n")
	}
	fmt.Print(sb.String())
}
