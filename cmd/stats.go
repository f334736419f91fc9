package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/pyneda/consentscan/pkg/scan/queue"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var statsJSON bool

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue statistics",
	Run: func(cmd *cobra.Command, args []string) {
		logger := log.With().Str("type", "stats").Logger()
		sm := newScanManager(logger)
		defer sm.Stop()

		stats, err := sm.Queue().GetStats(context.Background())
		exitOnError(err, "Failed to get queue stats")
		if statsJSON {
			data, err := json.MarshalIndent(stats, "", "  ")
			exitOnError(err, "Failed to encode queue stats")
			fmt.Println(string(data))
			return
		}
		printQueueStats(stats)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Print statistics as JSON")
}

func printQueueStats(stats *queue.QueueStats) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetBorder(true)
	table.AppendBulk([][]string{
		{"Backend", stats.Backend},
		{"Queued", fmt.Sprintf("%d", stats.Queued)},
		{"Processing", fmt.Sprintf("%d", stats.Processing)},
		{"Completed", fmt.Sprintf("%d", stats.Completed)},
		{"Failed", fmt.Sprintf("%d", stats.Failed)},
		{"Cancelled", fmt.Sprintf("%d", stats.Cancelled)},
		{"Max concurrent", fmt.Sprintf("%d", stats.MaxConcurrent)},
		{"Estimated job duration", stats.EstimatedJobDuration.String()},
		{"Estimated wait", stats.EstimatedWait.String()},
	})
	table.SetFooter([]string{"Total", fmt.Sprintf("%d", stats.Total)})
	table.Render()
}
