package cmd

import (
	"RC/benchmark"
	"RC/configs"
	"RC/rendezvous"
	"RC/wakeup"
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var foregroundCmd = &cobra.Command{
	Use:   "foreground",
	Short: "Run the driver: wake the background before every item and measure the strategy",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		mb := wakeup.NewMailbox()
		stop := wakeup.Listen(ctx, mb, cancel)
		defer stop()

		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		fg := benchmark.NewForeground(cfg, store, rendezvous.New(cfg.RendezvousDir, configs.WaitForFileInterval), wakeup.SignalWaker{}, mb, os.Getpid())
		defer func() {
			if err := fg.CleanUp(); err != nil {
				logrus.Warnf("cleanup: %v", err)
			}
		}()
		if err := fg.Run(ctx); err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), fg.Report().String())
		return nil
	},
}

func init() {
	addRunFlags(foregroundCmd)
	rootCmd.AddCommand(foregroundCmd)
}
