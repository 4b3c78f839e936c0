package config

import (
	"errors"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	App struct {
		LogLevel   string `toml:"log_level"`
		ListenAddr string `toml:"listen_addr"`
		Console    bool   `toml:"console"`
	} `toml:"app"`

	Broadcast struct {
		IntervalSec     int `toml:"interval_sec"`
		IdleIntervalMs  int `toml:"idle_interval_ms"`
		BackoffSec      int `toml:"backoff_sec"`
		SendTimeoutMs   int `toml:"send_timeout_ms"`
		SendConcurrency int `toml:"send_concurrency"`
	} `toml:"broadcast"`

	Basis struct {
		Quote           string  `toml:"quote"`
		MinNotional     float64 `toml:"min_notional"`
		MaxBasisPercent float64 `toml:"max_basis_percent"`
		TopK            int     `toml:"top_k"`
	} `toml:"basis"`

	Exchange struct {
		Binance struct {
			SpotURL         string `toml:"spot_url"`
			FuturesURL      string `toml:"futures_url"`
			TimeoutSec      int    `toml:"timeout_sec"`
			BreakerFailures uint32 `toml:"breaker_failures"`
			BreakerOpenSec  int    `toml:"breaker_open_sec"`
		} `toml:"binance"`
	} `toml:"exchange"`

	Storage struct {
		Enabled bool `toml:"enabled"`

		Redis struct {
			Enabled  bool   `toml:"enabled"`
			Addr     string `toml:"addr"`
			Password string `toml:"password"`
			DB       int    `toml:"db"`
			Channel  string `toml:"channel"`
		} `toml:"redis"`

		SQLite struct {
			Enabled bool   `toml:"enabled"`
			Path    string `toml:"path"`
		} `toml:"sqlite"`

		Postgres struct {
			Enabled bool   `toml:"enabled"`
			DSN     string `toml:"dsn"`
		} `toml:"postgres"`
	} `toml:"storage"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with every default applied, as if loaded from an empty file.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.ListenAddr == "" {
		cfg.App.ListenAddr = ":8000"
	}

	if cfg.Broadcast.IntervalSec <= 0 {
		cfg.Broadcast.IntervalSec = 10
	}
	if cfg.Broadcast.IdleIntervalMs <= 0 {
		cfg.Broadcast.IdleIntervalMs = 1000
	}
	if cfg.Broadcast.BackoffSec <= 0 {
		cfg.Broadcast.BackoffSec = 5
	}
	if cfg.Broadcast.SendTimeoutMs <= 0 {
		cfg.Broadcast.SendTimeoutMs = 2000
	}
	if cfg.Broadcast.SendConcurrency <= 0 {
		cfg.Broadcast.SendConcurrency = 32
	}

	if cfg.Basis.Quote == "" {
		cfg.Basis.Quote = "USDT"
	}
	cfg.Basis.Quote = strings.ToUpper(strings.TrimSpace(cfg.Basis.Quote))
	if cfg.Basis.MinNotional <= 0 {
		cfg.Basis.MinNotional = 500_000
	}
	if cfg.Basis.MaxBasisPercent <= 0 {
		cfg.Basis.MaxBasisPercent = 10
	}

	b := &cfg.Exchange.Binance
	if b.SpotURL == "" {
		b.SpotURL = "https://api.binance.com"
	}
	if b.FuturesURL == "" {
		b.FuturesURL = "https://fapi.binance.com"
	}
	if b.TimeoutSec <= 0 {
		b.TimeoutSec = 10
	}
	if b.BreakerFailures == 0 {
		b.BreakerFailures = 3
	}
	if b.BreakerOpenSec <= 0 {
		b.BreakerOpenSec = 30
	}

	if cfg.Storage.Redis.Channel == "" {
		cfg.Storage.Redis.Channel = "xbasis:snapshots"
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = "data/xbasis.db"
	}
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Exchange.Binance.SpotURL) == "" || strings.TrimSpace(cfg.Exchange.Binance.FuturesURL) == "" {
		return errors.New("exchange.binance urls must not be empty")
	}
	if cfg.Basis.Quote == "" {
		return errors.New("basis.quote is empty")
	}
	if cfg.Basis.TopK < 0 {
		return errors.New("basis.top_k must be >= 0")
	}

	if !cfg.Storage.Enabled {
		return nil
	}
	if cfg.Storage.Redis.Enabled && strings.TrimSpace(cfg.Storage.Redis.Addr) == "" {
		return errors.New("storage.redis.addr empty but enabled")
	}
	if cfg.Storage.SQLite.Enabled && strings.TrimSpace(cfg.Storage.SQLite.Path) == "" {
		return errors.New("storage.sqlite.path empty but enabled")
	}
	if cfg.Storage.Postgres.Enabled && strings.TrimSpace(cfg.Storage.Postgres.DSN) == "" {
		return errors.New("storage.postgres.dsn empty but enabled")
	}
	return nil
}

// ---- derived durations ----

func (c *Config) Interval() time.Duration {
	return time.Duration(c.Broadcast.IntervalSec) * time.Second
}

func (c *Config) IdleInterval() time.Duration {
	return time.Duration(c.Broadcast.IdleIntervalMs) * time.Millisecond
}

func (c *Config) Backoff() time.Duration {
	return time.Duration(c.Broadcast.BackoffSec) * time.Second
}

func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.Broadcast.SendTimeoutMs) * time.Millisecond
}

func (c *Config) FeedTimeout() time.Duration {
	return time.Duration(c.Exchange.Binance.TimeoutSec) * time.Second
}

func (c *Config) BreakerOpen() time.Duration {
	return time.Duration(c.Exchange.Binance.BreakerOpenSec) * time.Second
}
