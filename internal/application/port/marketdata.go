package port

import "context"

// MarketDataSource 交易所行情数据源，每个方法对应一次独立的上游请求
// Maps are keyed by exchange symbol (e.g. "BTCUSDT").
type MarketDataSource interface {
	// ActiveSymbols returns symbols currently tradable for the configured quote.
	ActiveSymbols(ctx context.Context) (map[string]struct{}, error)
	// SpotPrices returns spot last prices.
	SpotPrices(ctx context.Context) (map[string]float64, error)
	// SpotVolumes returns spot 24h volume in base asset units.
	SpotVolumes(ctx context.Context) (map[string]float64, error)
	// FuturesPrices returns perpetual last prices.
	FuturesPrices(ctx context.Context) (map[string]float64, error)
	// FuturesVolumes returns perpetual 24h volume in base asset units.
	FuturesVolumes(ctx context.Context) (map[string]float64, error)
}
