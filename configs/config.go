package configs

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the options of one experiment run. Durations are integer
// microseconds unless the field says otherwise.
type Config struct {
	Items            int    `yaml:"items"`
	RaceProbability  int    `yaml:"race_probability"`
	OperationLength  int64  `yaml:"operation_length"`
	LockLength       int64  `yaml:"lock_length"`
	RefreshLength    int64  `yaml:"refresh_length"`
	Strategy         string `yaml:"strategy"`
	Store            string `yaml:"store"`
	StoreProps       string `yaml:"store_props"`
	RendezvousDir    string `yaml:"rendezvous_dir"`
	JournalDir       string `yaml:"journal_dir"`
	WarmUp           bool   `yaml:"warm_up"`
	Seed             int64  `yaml:"seed"`
	HoldDistribution string `yaml:"hold_distribution"`
	PollInterval     int64  `yaml:"poll_interval"`
	PeerTimeout      int64  `yaml:"peer_timeout"` // milliseconds, 0 disables
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Items:            ItemsCount,
		RaceProbability:  DefaultRaceConditionProbability,
		OperationLength:  DefaultOperationLength,
		LockLength:       DefaultLockLength,
		RefreshLength:    DefaultRefreshLength,
		Strategy:         Optimistic,
		Store:            FileStorage,
		RendezvousDir:    ".",
		WarmUp:           true,
		HoldDistribution: UniformHold,
		PollInterval:     DefaultPollInterval,
		PeerTimeout:      DefaultPeerTimeout,
	}
}

// Load reads a YAML file on top of the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, Errorf("parsing config %s: %v", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid option. Nothing is clamped.
func (c *Config) Validate() error {
	if c.Items <= 0 {
		return Errorf("items must be positive, got %d", c.Items)
	}
	if c.RaceProbability < 0 || c.RaceProbability > 100 {
		return Errorf("race probability must be within [0,100], got %d", c.RaceProbability)
	}
	for name, v := range map[string]int64{
		"operation length": c.OperationLength,
		"lock length":      c.LockLength,
		"refresh length":   c.RefreshLength,
		"poll interval":    c.PollInterval,
	} {
		if v <= 0 {
			return Errorf("%s must be positive, got %d", name, v)
		}
	}
	if c.PeerTimeout < 0 {
		return Errorf("peer timeout must not be negative, got %d", c.PeerTimeout)
	}
	switch c.Strategy {
	case Pessimistic, Optimistic:
	default:
		return Errorf("strategy must be %s or %s, got %q", Pessimistic, Optimistic, c.Strategy)
	}
	switch c.Store {
	case BenchmarkStorage, FileStorage, MongoDB, PostgreSQL:
	default:
		return Errorf("unknown store %q", c.Store)
	}
	switch c.HoldDistribution {
	case UniformHold, ConstantHold:
	default:
		return Errorf("unknown hold distribution %q", c.HoldDistribution)
	}
	return nil
}

func (c *Config) IsPessimistic() bool {
	return c.Strategy == Pessimistic
}

// ModeName is the strategy label used in reports.
func (c *Config) ModeName() string {
	return StrategyName(c.Strategy)
}

func StrategyName(strategy string) string {
	if strategy == "" {
		return ""
	}
	return strings.ToUpper(strategy[:1]) + strategy[1:]
}

func (c *Config) Operation() time.Duration {
	return time.Duration(c.OperationLength) * time.Microsecond
}

func (c *Config) Lock() time.Duration {
	return time.Duration(c.LockLength) * time.Microsecond
}

func (c *Config) Refresh() time.Duration {
	return time.Duration(c.RefreshLength) * time.Microsecond
}

func (c *Config) Poll() time.Duration {
	return time.Duration(c.PollInterval) * time.Microsecond
}

func (c *Config) PeerLoss() time.Duration {
	return time.Duration(c.PeerTimeout) * time.Millisecond
}

// ItemBudget bounds how long the driver may be busy with one item: the lock
// window, a contended wait of up to one operation, and either the operation
// itself or a failed attempt, a refresh and the retry.
func (c *Config) ItemBudget() time.Duration {
	return c.Lock() + 2*c.Operation() + c.Refresh()
}

// IdleLoss is the interferer's silence limit between two wakes. The driver
// works on an item in that gap, so the item budget is not silence.
func (c *Config) IdleLoss() time.Duration {
	if c.PeerTimeout == 0 {
		return 0
	}
	return c.PeerLoss() + c.ItemBudget()
}
