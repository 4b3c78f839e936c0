package container

import (
	"time"

	"xbasis/internal/application/port"
	"xbasis/internal/application/service"
	"xbasis/internal/application/usecase/broadcast"
	dsvc "xbasis/internal/domain/service"
)

// Settings 应用层参数，零值使用各组件默认值
type Settings struct {
	FeedTimeout time.Duration
	Rules       dsvc.Rules
	TopK        int
	Broadcast   broadcast.Options
}

// Container 按需构建应用服务，同一实例只构建一次
type Container struct {
	source   port.MarketDataSource
	settings Settings

	fetcher *service.MarketDataFetcher
	engine  *service.BasisEngine
	pull    *service.PullService
	hub     *broadcast.Hub
}

func New(source port.MarketDataSource, settings Settings) *Container {
	if settings.Rules == (dsvc.Rules{}) {
		settings.Rules = dsvc.DefaultRules()
	}
	return &Container{
		source:   source,
		settings: settings,
	}
}

func (c *Container) Fetcher() *service.MarketDataFetcher {
	if c.fetcher == nil {
		c.fetcher = service.NewMarketDataFetcher(c.source, c.settings.FeedTimeout)
	}
	return c.fetcher
}

func (c *Container) Engine() *service.BasisEngine {
	if c.engine == nil {
		c.engine = service.NewBasisEngine(c.Fetcher(), c.settings.Rules, service.WithTopK(c.settings.TopK))
	}
	return c.engine
}

func (c *Container) PullService() *service.PullService {
	if c.pull == nil {
		c.pull = service.NewPullService(c.Engine(), c.Fetcher().Timeout())
	}
	return c.pull
}

// Hub shares the engine with PullService; each call computes independently.
func (c *Container) Hub() *broadcast.Hub {
	if c.hub == nil {
		c.hub = broadcast.NewHub(c.Engine(), c.settings.Broadcast)
	}
	return c.hub
}

// Close shuts the hub down if it was built.
func (c *Container) Close() error {
	if c.hub != nil {
		c.hub.Close()
	}
	return nil
}
