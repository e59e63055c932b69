package cmd

import (
	"RC/configs"
	"RC/storage"
	"context"
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string // YAML run configuration
	logLevel   string // logrus level name
	cpuProfile string // write a cpu profile to this file
	profFile   *os.File
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:           "race-server",
	Short:         "Two-process race condition harness for pessimistic and optimistic writes",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := configs.SetLogLevel(logLevel); err != nil {
			return err
		}
		if cpuProfile == "" {
			return nil
		}
		var err error
		if profFile, err = os.Create(cpuProfile); err != nil {
			return fmt.Errorf("creating cpu profile: %w", err)
		}
		return pprof.StartCPUProfile(profFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML run configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&cpuProfile, "cpu-prof", "", "Write a cpu profile to this file")
}

// Execute runs the CLI and exits with status 1 on error.
func Execute() {
	err := rootCmd.ExecuteContext(context.Background())
	if profFile != nil {
		pprof.StopCPUProfile()
		_ = profFile.Close()
	}
	if err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

// runOptions mirror configs.Config; a flag only overrides the file when set.
type runOptions struct {
	items       int
	prob        int
	operation   int64
	lock        int64
	refresh     int64
	pessimistic bool
	strategy    string
	store       string
	storeProps  string
	dir         string
	journal     string
	warmUp      bool
	seed        int64
	hold        string
	poll        int64
	peerTimeout int64
}

var opts runOptions

func addRunFlags(c *cobra.Command) {
	f := c.Flags()
	f.IntVar(&opts.items, "items", configs.ItemsCount, "Number of items")
	f.IntVar(&opts.prob, "prob", configs.DefaultRaceConditionProbability, "Percentage of contended items [0,100]")
	f.Int64Var(&opts.operation, "operation", configs.DefaultOperationLength, "Operation length (us)")
	f.Int64Var(&opts.lock, "lock", configs.DefaultLockLength, "Lock acquisition length (us)")
	f.Int64Var(&opts.refresh, "refresh", configs.DefaultRefreshLength, "Session refresh length (us)")
	f.BoolVarP(&opts.pessimistic, "pessimistic", "p", false, "Use the pessimistic strategy")
	f.StringVar(&opts.strategy, "strategy", configs.Optimistic, "Strategy (pessimistic, optimistic)")
	f.StringVar(&opts.store, "store", configs.FileStorage, "Record store (sql, mongo, file, benchmark)")
	f.StringVar(&opts.storeProps, "store-props", "", "Properties file with store connection settings")
	f.StringVar(&opts.dir, "dir", ".", "Rendezvous directory shared by both processes")
	f.StringVar(&opts.journal, "journal", "", "Result journal directory (empty disables)")
	f.BoolVar(&opts.warmUp, "warm-up", true, "Write one throwaway record before the first item")
	f.Int64Var(&opts.seed, "seed", 0, "Seed for the race schedule (0 = time based)")
	f.StringVar(&opts.hold, "hold", configs.UniformHold, "Lock hold distribution (uniform, constant)")
	f.Int64Var(&opts.poll, "poll", configs.DefaultPollInterval, "Suspend loop poll interval (us)")
	f.Int64Var(&opts.peerTimeout, "peer-timeout", configs.DefaultPeerTimeout, "Peer silence before giving up (ms, 0 disables)")
}

// loadConfig layers flags over the config file over the defaults.
func loadConfig(c *cobra.Command) (*configs.Config, error) {
	cfg, err := configs.Load(configPath)
	if err != nil {
		return nil, err
	}
	f := c.Flags()
	if f.Changed("items") {
		cfg.Items = opts.items
	}
	if f.Changed("prob") {
		cfg.RaceProbability = opts.prob
	}
	if f.Changed("operation") {
		cfg.OperationLength = opts.operation
	}
	if f.Changed("lock") {
		cfg.LockLength = opts.lock
	}
	if f.Changed("refresh") {
		cfg.RefreshLength = opts.refresh
	}
	if f.Changed("strategy") {
		cfg.Strategy = opts.strategy
	}
	if f.Changed("pessimistic") && opts.pessimistic {
		cfg.Strategy = configs.Pessimistic
	}
	if f.Changed("store") {
		cfg.Store = opts.store
	}
	if f.Changed("store-props") {
		cfg.StoreProps = opts.storeProps
	}
	if f.Changed("dir") {
		cfg.RendezvousDir = opts.dir
	}
	if f.Changed("journal") {
		cfg.JournalDir = opts.journal
	}
	if f.Changed("warm-up") {
		cfg.WarmUp = opts.warmUp
	}
	if f.Changed("seed") {
		cfg.Seed = opts.seed
	}
	if f.Changed("hold") {
		cfg.HoldDistribution = opts.hold
	}
	if f.Changed("poll") {
		cfg.PollInterval = opts.poll
	}
	if f.Changed("peer-timeout") {
		cfg.PeerTimeout = opts.peerTimeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	configs.DPrintf("config: %s", configs.JToString(cfg))
	return cfg, nil
}

func openStore(ctx context.Context, cfg *configs.Config) (storage.Store, error) {
	props, err := configs.LoadStoreProps(cfg.StoreProps, cfg.RendezvousDir)
	if err != nil {
		return nil, err
	}
	return storage.NewStore(ctx, cfg.Store, props)
}
