package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/pyneda/consentscan/db"
	"github.com/pyneda/consentscan/lib"
	"github.com/spf13/cobra"
)

var (
	jobsFormat   string
	jobsStatus   string
	jobsQuery    string
	jobsPage     int
	jobsPageSize int
	jobsOutput   string
)

// jobsCmd represents the jobs command
var jobsCmd = &cobra.Command{
	Use:     "jobs",
	Aliases: []string{"list"},
	Short:   "List scan jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := db.ScanJobFilter{
			Query: jobsQuery,
			Pagination: db.Pagination{
				Page:     jobsPage,
				PageSize: jobsPageSize,
			},
		}
		if jobsStatus != "" {
			for _, s := range strings.Split(jobsStatus, ",") {
				filter.Statuses = append(filter.Statuses, db.ScanJobStatus(strings.TrimSpace(s)))
			}
		}

		jobs, count, err := db.Connection().ListScanJobs(context.Background(), filter)
		if err != nil {
			return err
		}

		formatType, err := lib.ParseFormatType(jobsFormat)
		if err != nil {
			return err
		}

		if jobsOutput != "" {
			if err := lib.FormatOutputToFile(jobs, formatType, jobsOutput); err != nil {
				return err
			}
			fmt.Printf("%d of %d jobs written to %s\n", len(jobs), count, jobsOutput)
			return nil
		}

		formattedOutput, err := lib.FormatOutput(jobs, formatType)
		if err != nil {
			return err
		}
		fmt.Println(formattedOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.Flags().StringVarP(&jobsFormat, "format", "f", "table", "Output format (table, pretty, text, json, yaml)")
	jobsCmd.Flags().StringVar(&jobsStatus, "status", "", "Comma-separated list of statuses to filter")
	jobsCmd.Flags().StringVarP(&jobsQuery, "query", "q", "", "Filter by URL substring")
	jobsCmd.Flags().IntVar(&jobsPage, "page", 1, "Page number")
	jobsCmd.Flags().IntVar(&jobsPageSize, "page-size", 50, "Page size")
	jobsCmd.Flags().StringVarP(&jobsOutput, "output", "o", "", "Write the list to a file instead of stdout")
}
