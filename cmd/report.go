package cmd

import (
	"RC/benchmark"
	"RC/storage"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var reportJSON bool

var reportCmd = &cobra.Command{
	Use:   "report <journal>",
	Short: "Summarize the result journal of a finished run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		infos, err := storage.ReadResults(args[0])
		if err != nil {
			return err
		}
		report := benchmark.NewReport(filepath.Base(args[0]), infos)
		report.Journal = args[0]
		if reportJSON {
			fmt.Fprintln(cmd.OutOrStdout(), report.JSON())
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), report.String())
		return nil
	},
}

func init() {
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Print the report as JSON")
	rootCmd.AddCommand(reportCmd)
}
