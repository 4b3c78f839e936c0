package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"xbasis/internal/application/port"
	"xbasis/internal/infrastructure/config"
	"xbasis/internal/infrastructure/exchange"
	"xbasis/internal/infrastructure/exchange/binance"
	"xbasis/internal/infrastructure/storage/composite"
	pgrepo "xbasis/internal/infrastructure/storage/postgres"
	redisrelay "xbasis/internal/infrastructure/storage/redis"
	sqliterepo "xbasis/internal/infrastructure/storage/sqlite"
)

// Container 包含所有基础设施依赖
type Container struct {
	cfg         *config.Config
	market      *binance.MarketClient
	redisClient *redis.Client
	redisRelay  *redisrelay.Relay
	sqliteRepo  *sqliterepo.Repo
	pgRepo      *pgrepo.Repo
	closeOnce   sync.Once
	closerChain []func() error
}

// New 创建新的容器实例
func New(cfg *config.Config) (*Container, error) {
	c := &Container{
		cfg:         cfg,
		closerChain: make([]func() error, 0),
	}

	b := cfg.Exchange.Binance
	c.market = binance.NewMarketClient(binance.MarketConfig{
		SpotURL:    b.SpotURL,
		FuturesURL: b.FuturesURL,
		Timeout:    cfg.FeedTimeout(),
		Breaker: binance.BreakerSettings{
			Failures: b.BreakerFailures,
			Open:     cfg.BreakerOpen(),
		},
		Symbols: exchange.NewCommonSymbolConverter(cfg.Basis.Quote),
	})
	market := c.market
	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing market client")
		return market.Close()
	})

	// 初始化存储层
	if cfg.Storage.Enabled {
		if err := c.initStorage(); err != nil {
			// 清理已初始化的资源
			_ = c.Close()
			return nil, err
		}
	}

	return c, nil
}

// initStorage 初始化存储层（Redis、SQLite、Postgres）
func (c *Container) initStorage() error {
	if c.cfg.Storage.Redis.Enabled {
		if err := c.initRedis(); err != nil {
			return fmt.Errorf("redis init failed: %w", err)
		}
	}
	if c.cfg.Storage.SQLite.Enabled {
		if err := c.initSQLite(); err != nil {
			return fmt.Errorf("sqlite init failed: %w", err)
		}
	}
	if c.cfg.Storage.Postgres.Enabled {
		if err := c.initPostgres(); err != nil {
			return fmt.Errorf("postgres init failed: %w", err)
		}
	}
	return nil
}

// initRedis 初始化 Redis 连接
func (c *Container) initRedis() error {
	rc := c.cfg.Storage.Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	c.redisClient = rdb
	c.redisRelay = redisrelay.New(rdb, rc.Channel)

	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing redis connection")
		return rdb.Close()
	})

	log.Info().
		Str("addr", rc.Addr).
		Int("db", rc.DB).
		Str("channel", c.redisRelay.Channel()).
		Msg("redis initialized")
	return nil
}

// initSQLite 初始化 SQLite 数据库
func (c *Container) initSQLite() error {
	repo, err := sqliterepo.New(c.cfg.Storage.SQLite.Path)
	if err != nil {
		return err
	}
	c.sqliteRepo = repo

	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing sqlite connection")
		return repo.Close()
	})

	log.Info().
		Str("path", c.cfg.Storage.SQLite.Path).
		Msg("sqlite initialized")
	return nil
}

// initPostgres 初始化 Postgres
func (c *Container) initPostgres() error {
	repo, err := pgrepo.New(c.cfg.Storage.Postgres.DSN)
	if err != nil {
		return err
	}
	c.pgRepo = repo

	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing postgres connection")
		return repo.Close()
	})

	log.Info().Msg("postgres initialized")
	return nil
}

// Config 获取配置
func (c *Container) Config() *config.Config {
	return c.cfg
}

// MarketSource 行情数据源
func (c *Container) MarketSource() port.MarketDataSource {
	return c.market
}

// Relays 返回已启用的快照转发通道
func (c *Container) Relays() []port.Relay {
	var out []port.Relay
	if c.redisRelay != nil {
		out = append(out, c.redisRelay)
	}
	return out
}

// Recorder 返回周期审计，没有启用任何数据库时为 nil
// Closing is owned by the container.
func (c *Container) Recorder() port.CycleRecorder {
	var repos []port.CycleRecorder
	if c.sqliteRepo != nil {
		repos = append(repos, c.sqliteRepo)
	}
	if c.pgRepo != nil {
		repos = append(repos, c.pgRepo)
	}
	if len(repos) == 0 {
		return nil
	}
	return composite.New(repos...)
}

// SQLiteRepo 获取 SQLite 仓储
func (c *Container) SQLiteRepo() *sqliterepo.Repo {
	return c.sqliteRepo
}

// Close 关闭所有资源（按后进先出顺序）
func (c *Container) Close() error {
	var err error
	c.closeOnce.Do(func() {
		for i := len(c.closerChain) - 1; i >= 0; i-- {
			if e := c.closerChain[i](); e != nil {
				log.Error().Err(e).Msg("error closing resource")
				if err == nil {
					err = e
				}
			}
		}
		log.Info().Msg("container closed")
	})
	return err
}
