package cmd

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/pyneda/consentscan/lib"
	"github.com/pyneda/consentscan/pkg/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string
var envFile string
var debugLogging bool
var prettyLogs bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "consentscan",
	Short: "Queue and run website privacy compliance scans",
	Long: `consentscan drives a real browser through a site's consent banner,
records cookies, trackers and requests before and after consent, and turns
the evidence into a scored compliance report.

Scans are queued and processed by a worker with bounded concurrency, either
by polling the database or through a NATS JetStream dispatcher.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is config.yaml in /etc/consentscan, $HOME/.consentscan or the working directory)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading configuration")
	rootCmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "Use debug level logging")
	rootCmd.PersistentFlags().BoolVar(&prettyLogs, "pretty", true, "Use pretty logging instead JSON")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level := viper.GetString("logging.level")
		if debugLogging {
			level = "debug"
		}
		pretty := viper.GetBool("logging.pretty")
		if cmd.Flags().Changed("pretty") {
			pretty = prettyLogs
		}
		lib.SetupLogging(lib.LogOptions{
			Level:  level,
			Pretty: pretty,
			File:   viper.GetString("logging.file"),
		})
		return nil
	}
}

// initConfig loads the dotenv file, then defaults, environment and config file
func initConfig() {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("file", envFile).Msg("Could not load env file")
		}
	}
	config.LoadConfig(cfgFile)
}
