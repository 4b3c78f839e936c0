package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/encoding/json"
	"github.com/sony/gobreaker/v2"

	"xbasis/internal/domain/model"
	"xbasis/internal/infrastructure/exchange"
)

const (
	DefaultSpotURL    = "https://api.binance.com"
	DefaultFuturesURL = "https://fapi.binance.com"

	pathExchangeInfo   = "/api/v3/exchangeInfo"
	pathSpotPrice      = "/api/v3/ticker/price"
	pathSpotTicker24h  = "/api/v3/ticker/24hr"
	pathFuturesPrice   = "/fapi/v1/ticker/price"
	pathFutureTicker24 = "/fapi/v1/ticker/24hr"

	statusTrading = "TRADING"
)

type MarketConfig struct {
	SpotURL    string
	FuturesURL string
	Timeout    time.Duration // http client bound, the fetcher applies its own per-call deadline
	Breaker    BreakerSettings
	Symbols    exchange.SymbolConverter
	HTTPClient *http.Client // optional
}

// MarketClient Binance 公共行情 REST 客户端（现货 + U 本位永续）
// Only symbols matching the configured quote are returned.
type MarketClient struct {
	spotURL    string
	futuresURL string
	httpClient *http.Client
	symbols    exchange.SymbolConverter
	breakers   map[string]*gobreaker.CircuitBreaker[[]byte]
}

func NewMarketClient(cfg MarketConfig) *MarketClient {
	if cfg.SpotURL == "" {
		cfg.SpotURL = DefaultSpotURL
	}
	if cfg.FuturesURL == "" {
		cfg.FuturesURL = DefaultFuturesURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Symbols == nil {
		cfg.Symbols = exchange.NewCommonSymbolConverter("USDT")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	breakers := make(map[string]*gobreaker.CircuitBreaker[[]byte], len(model.AllFeeds))
	for _, feed := range model.AllFeeds {
		breakers[feed] = newBreaker("binance."+feed, cfg.Breaker)
	}

	return &MarketClient{
		spotURL:    cfg.SpotURL,
		futuresURL: cfg.FuturesURL,
		httpClient: cfg.HTTPClient,
		symbols:    cfg.Symbols,
		breakers:   breakers,
	}
}

// Close releases pooled upstream connections.
func (c *MarketClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// ---- wire types ----

type exchangeInfoResp struct {
	Symbols []struct {
		Symbol     string `json:"symbol"`
		Status     string `json:"status"`
		QuoteAsset string `json:"quoteAsset"`
	} `json:"symbols"`
}

type priceItem struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type ticker24hItem struct {
	Symbol string `json:"symbol"`
	Volume string `json:"volume"` // base asset
}

// ---- MarketDataSource ----

// ActiveSymbols 现货 exchangeInfo 中状态为 TRADING 的交易对
func (c *MarketClient) ActiveSymbols(ctx context.Context) (map[string]struct{}, error) {
	body, err := c.get(ctx, c.breakers[model.FeedActiveSymbols], joinURL(c.spotURL, pathExchangeInfo))
	if err != nil {
		return nil, err
	}
	var info exchangeInfoResp
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("%w: exchangeInfo: %v", ErrMalformed, err)
	}

	out := make(map[string]struct{}, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status == statusTrading && c.symbols.Match(s.Symbol) {
			out[s.Symbol] = struct{}{}
		}
	}
	log.Debug().Int("count", len(out)).Msg("binance active symbols")
	return out, nil
}

func (c *MarketClient) SpotPrices(ctx context.Context) (map[string]float64, error) {
	return c.prices(ctx, model.FeedSpotPrices, joinURL(c.spotURL, pathSpotPrice))
}

func (c *MarketClient) SpotVolumes(ctx context.Context) (map[string]float64, error) {
	return c.volumes(ctx, model.FeedSpotVolumes, joinURL(c.spotURL, pathSpotTicker24h))
}

func (c *MarketClient) FuturesPrices(ctx context.Context) (map[string]float64, error) {
	return c.prices(ctx, model.FeedFuturesPrices, joinURL(c.futuresURL, pathFuturesPrice))
}

func (c *MarketClient) FuturesVolumes(ctx context.Context) (map[string]float64, error) {
	return c.volumes(ctx, model.FeedFuturesVolumes, joinURL(c.futuresURL, pathFutureTicker24))
}

func (c *MarketClient) prices(ctx context.Context, feed, endpoint string) (map[string]float64, error) {
	body, err := c.get(ctx, c.breakers[feed], endpoint)
	if err != nil {
		return nil, err
	}
	var items []priceItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, feed, err)
	}
	return collect(feed, c.symbols, items, func(it priceItem) (string, string) { return it.Symbol, it.Price }), nil
}

func (c *MarketClient) volumes(ctx context.Context, feed, endpoint string) (map[string]float64, error) {
	body, err := c.get(ctx, c.breakers[feed], endpoint)
	if err != nil {
		return nil, err
	}
	var items []ticker24hItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, feed, err)
	}
	return collect(feed, c.symbols, items, func(it ticker24hItem) (string, string) { return it.Symbol, it.Volume }), nil
}

// collect parses numeric strings for matching symbols. A single unparsable
// entry is dropped; the rest of the feed stays usable.
func collect[T any](feed string, symbols exchange.SymbolConverter, items []T, kv func(T) (string, string)) map[string]float64 {
	out := make(map[string]float64, len(items))
	bad := 0
	for _, it := range items {
		sym, raw := kv(it)
		if !symbols.Match(sym) {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			bad++
			continue
		}
		out[sym] = v
	}
	if bad > 0 {
		log.Warn().Str("feed", feed).Int("skipped", bad).Msg("unparsable entries dropped")
	}
	return out
}
