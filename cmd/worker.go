package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var workerConcurrency int

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Manage the scan worker",
}

// workerStartCmd represents the worker start command
var workerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the scan worker",
	Long: `Start the worker loop that claims queued scans and runs them in the browser.

The worker checks the queue every queue.poll_interval and right after scans
are added or finish. Jobs left processing by a previous process for longer
than queue.recovery.stale_after are marked failed on start.

Examples:
  # Start with the configured backend
  consentscan worker start

  # Allow two scans at a time
  consentscan worker start --concurrency 2`,
	Run: runWorkerStart,
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.AddCommand(workerStartCmd)

	workerStartCmd.Flags().IntVarP(&workerConcurrency, "concurrency", "c", 0, "Maximum scans running at once (defaults to queue.max_concurrent)")
}

func runWorkerStart(cmd *cobra.Command, args []string) {
	logger := log.With().Str("component", "worker-cli").Logger()
	if workerConcurrency > 0 {
		viper.Set("queue.max_concurrent", workerConcurrency)
	}

	sm := newScanManager(logger)
	if err := sm.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start scan manager")
	}
	logger.Info().
		Str("backend", sm.Backend()).
		Int("concurrency", viper.GetInt("queue.max_concurrent")).
		Msg("Worker started, press Ctrl+C to stop")

	waitForSignal(logger)
	logger.Info().Msg("Waiting for running scans to finish")
	sm.Stop()
	logger.Info().Msg("Worker stopped")
}
