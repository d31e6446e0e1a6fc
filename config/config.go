package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config carries everything cmd/mcpserver needs to wire the marketplace.
// Values come from an optional TOML file overridden by environment
// variables; environment always wins.
type Config struct {
	StoreDriver string `toml:"store_driver"` // memory | sqlite | postgres
	SQLitePath  string `toml:"sqlite_path"`
	PGDSN       string `toml:"pg_dsn"`

	StakePercent   int64  `toml:"stake_percent"`
	StakeCapSats   int64  `toml:"stake_cap_sats"`
	ForfeitPercent int64  `toml:"forfeit_percent"`
	MinVerifiers   int    `toml:"min_verifiers"`
	MaxVerifiers   int    `toml:"max_verifiers"`
	MaxSummaryLen  int    `toml:"max_summary_len"`
	Authority      string `toml:"authority"`

	MetricsAddr    string        `toml:"metrics_addr"` // empty disables the /metrics listener
	DefaultVoting  time.Duration `toml:"-"`
	DefaultVotingS int64         `toml:"default_voting_seconds"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		StoreDriver:    "memory",
		SQLitePath:     "data/marketplace.db",
		StakePercent:   5,
		StakeCapSats:   100_000,
		ForfeitPercent: 20,
		MinVerifiers:   3,
		MaxVerifiers:   7,
		MaxSummaryLen:  2000,
		Authority:      "arbiter",
		DefaultVoting:  72 * time.Hour,
	}
}

// Load builds the configuration: defaults, then the TOML file at path (if
// path is non-empty the file must exist), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}
	if cfg.DefaultVotingS > 0 {
		cfg.DefaultVoting = time.Duration(cfg.DefaultVotingS) * time.Second
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MARKET_STORE_DRIVER"); v != "" {
		c.StoreDriver = v
	}
	if v := os.Getenv("MARKET_SQLITE_PATH"); v != "" {
		c.SQLitePath = v
	}
	if v := os.Getenv("MARKET_PG_DSN"); v != "" {
		c.PGDSN = v
	}
	if v := os.Getenv("MARKET_AUTHORITY"); v != "" {
		c.Authority = v
	}
	if v := os.Getenv("MARKET_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	c.StakePercent = envInt64("MARKET_STAKE_PERCENT", c.StakePercent)
	c.StakeCapSats = envInt64("MARKET_STAKE_CAP_SATS", c.StakeCapSats)
	c.ForfeitPercent = envInt64("MARKET_FORFEIT_PERCENT", c.ForfeitPercent)
	c.MinVerifiers = envInt("MARKET_MIN_VERIFIERS", c.MinVerifiers)
	c.MaxVerifiers = envInt("MARKET_MAX_VERIFIERS", c.MaxVerifiers)
	c.MaxSummaryLen = envInt("MARKET_MAX_SUMMARY_LEN", c.MaxSummaryLen)
	if v := envInt64("MARKET_DEFAULT_VOTING_SECONDS", 0); v > 0 {
		c.DefaultVoting = time.Duration(v) * time.Second
	}
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	if c.StoreDriver == "postgres" && c.PGDSN == "" {
		return fmt.Errorf("pg_dsn required when store driver is postgres")
	}
	if c.ForfeitPercent < 0 || c.ForfeitPercent > 100 {
		return fmt.Errorf("forfeit percent %d out of range", c.ForfeitPercent)
	}
	if c.MinVerifiers <= 0 || c.MaxVerifiers < c.MinVerifiers {
		return fmt.Errorf("invalid verifier quorum %d/%d", c.MinVerifiers, c.MaxVerifiers)
	}
	return nil
}

func envInt64(key string, def int64) int64 {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return v
		}
	}
	return def
}

func envInt(key string, def int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return def
}
