package cmd

import (
	"RC/benchmark"
	"RC/configs"
	"RC/rendezvous"
	"RC/wakeup"
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var backgroundCmd = &cobra.Command{
	Use:   "background",
	Short: "Run the interferer: contend on scheduled items when the foreground wakes it",
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

		bg := benchmark.NewBackground(cfg, store, rendezvous.New(cfg.RendezvousDir, configs.WaitForFileInterval), wakeup.SignalWaker{}, mb, os.Getpid())
		defer func() {
			if err := bg.CleanUp(); err != nil {
				logrus.Warnf("cleanup: %v", err)
			}
		}()
		if err := bg.Run(ctx); err != nil {
			return err
		}
		logrus.Info("background done")
		return nil
	},
}

func init() {
	addRunFlags(backgroundCmd)
	rootCmd.AddCommand(backgroundCmd)
}
