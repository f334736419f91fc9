package cmd

import (
	"github.com/pyneda/consentscan/api"
	"github.com/pyneda/consentscan/db"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var apiNoWorker bool

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Serve the HTTP API together with the scan worker",
	Run: func(cmd *cobra.Command, args []string) {
		logger := log.With().Str("type", "api").Logger()
		sm := newScanManager(logger)
		if !apiNoWorker {
			if err := sm.Start(); err != nil {
				logger.Fatal().Err(err).Msg("Failed to start scan manager")
			}
		}

		app := api.NewApp(sm.Queue(), db.Connection())
		listen := viper.GetString("api.listen")
		go func() {
			logger.Info().Str("listen", listen).Msg("Starting the API")
			if err := app.Listen(listen); err != nil {
				logger.Error().Err(err).Msg("Error starting server")
			}
		}()

		waitForSignal(logger)
		if err := app.Shutdown(); err != nil {
			logger.Warn().Err(err).Msg("Error shutting down server")
		}
		sm.Stop()
		logger.Info().Msg("API stopped")
	},
}

func init() {
	rootCmd.AddCommand(apiCmd)
	apiCmd.Flags().BoolVar(&apiNoWorker, "no-worker", false, "Only serve the API, scans are processed by a separate worker")
}
