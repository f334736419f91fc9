package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/pyneda/consentscan/pkg/scan/queue"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// cancelCmd represents the cancel command
var cancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a queued scan job",
	Long:  `Cancel a scan job that has not started yet. Running jobs are never interrupted.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		logger := log.With().Str("type", "cancel").Logger()
		sm := newScanManager(logger)
		defer sm.Stop()

		ctx := context.Background()
		cancelled, err := sm.Queue().CancelJob(ctx, args[0])
		exitOnError(err, "Failed to cancel job")
		if cancelled {
			fmt.Printf("Scan job %s cancelled\n", args[0])
			return
		}

		status, err := sm.Queue().GetJobStatus(ctx, args[0])
		if errors.Is(err, queue.ErrJobNotFound) {
			fmt.Printf("Scan job %s not found\n", args[0])
			os.Exit(1)
		}
		exitOnError(err, "Failed to get job status")
		fmt.Printf("Scan job %s cannot be cancelled, current status: %s\n", args[0], status.Status)
		os.Exit(1)
	},
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}
