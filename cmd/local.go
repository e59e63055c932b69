package cmd

import (
	"RC/benchmark"
	"RC/wakeup"
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var localCmd = &cobra.Command{
	Use:   "local",
	Short: "Run foreground and background in this process",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		stop := wakeup.Listen(ctx, wakeup.NewMailbox(), cancel)
		defer stop()

		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		report, err := benchmark.RunLocal(ctx, cfg, store)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), report.String())
		return nil
	},
}

func init() {
	addRunFlags(localCmd)
	rootCmd.AddCommand(localCmd)
}
