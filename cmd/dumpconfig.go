package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	dumpConfigFile  string
	dumpConfigPrint bool
)

// dumpconfigCmd represents the dumpconfig command
var dumpconfigCmd = &cobra.Command{
	Use:   "dumpconfig",
	Short: "Dumps the effective configuration",
	Run: func(cmd *cobra.Command, args []string) {
		if dumpConfigPrint {
			data, err := yaml.Marshal(viper.AllSettings())
			exitOnError(err, "Could not encode configuration")
			fmt.Print(string(data))
			return
		}
		if err := viper.SafeWriteConfigAs(dumpConfigFile); err != nil {
			log.Fatal().Err(err).Str("file", dumpConfigFile).Msg("Could not write config file")
		}
		log.Info().Str("file", dumpConfigFile).Msg("Config file written")
	},
}

func init() {
	rootCmd.AddCommand(dumpconfigCmd)
	dumpconfigCmd.Flags().StringVarP(&dumpConfigFile, "output", "o", "config.yaml", "File to write, existing files are not overwritten")
	dumpconfigCmd.Flags().BoolVar(&dumpConfigPrint, "print", false, "Print the configuration as YAML instead of writing a file")
}
