package model

import "time"

// ========== Basis Models ==========

// TickerSnapshot 单个交易对在一个周期内的现货/合约基差
type TickerSnapshot struct {
	Symbol        string    `json:"symbol"`
	SpotPrice     float64   `json:"spot_price"`
	FuturesPrice  float64   `json:"futures_price"`
	Basis         float64   `json:"basis"`         // futures - spot
	BasisPercent  float64   `json:"basis_percent"` // basis / spot * 100
	SpotVolume    float64   `json:"spot_volume"`   // 24h, base asset
	FuturesVolume float64   `json:"futures_volume"`
	Timestamp     time.Time `json:"last_update"`
}

// Snapshot 一个计算周期的排序结果
type Snapshot struct {
	Tickers   []TickerSnapshot
	Timestamp time.Time
	// Candidates is the number of symbols present in the active set and both price feeds.
	Candidates  int
	FailedFeeds []string
}

// Top returns at most k leading tickers; k <= 0 means no cap.
func (s Snapshot) Top(k int) []TickerSnapshot {
	if k <= 0 || k >= len(s.Tickers) {
		return s.Tickers
	}
	return s.Tickers[:k]
}

// ========== Feed Models ==========

// Feed names, one per upstream acquisition in a cycle.
const (
	FeedActiveSymbols  = "active_symbols"
	FeedSpotPrices     = "spot_prices"
	FeedSpotVolumes    = "spot_volumes"
	FeedFuturesPrices  = "futures_prices"
	FeedFuturesVolumes = "futures_volumes"
)

// AllFeeds lists every feed fetched per cycle.
var AllFeeds = []string{
	FeedActiveSymbols,
	FeedSpotPrices,
	FeedSpotVolumes,
	FeedFuturesPrices,
	FeedFuturesVolumes,
}

// FeedSet 一个周期内抓取到的全部行情数据，各 feed 互相独立
// A failed feed is left as an empty (non-nil) map and its name is listed in Failed.
type FeedSet struct {
	Active         map[string]struct{}
	SpotPrices     map[string]float64
	SpotVolumes    map[string]float64
	FuturesPrices  map[string]float64
	FuturesVolumes map[string]float64
	Failed         []string
}

// NewFeedSet returns a FeedSet with all maps allocated.
func NewFeedSet() FeedSet {
	return FeedSet{
		Active:         make(map[string]struct{}),
		SpotPrices:     make(map[string]float64),
		SpotVolumes:    make(map[string]float64),
		FuturesPrices:  make(map[string]float64),
		FuturesVolumes: make(map[string]float64),
	}
}

// AllFailed reports whether every upstream feed failed in this cycle.
func (f FeedSet) AllFailed() bool {
	return len(f.Failed) >= len(AllFeeds)
}

// ========== Audit Models ==========

// CycleRecord 一次广播周期的审计信息（不含行情数据）
type CycleRecord struct {
	StartedAt   time.Time
	Duration    time.Duration
	Candidates  int
	Results     int
	Subscribers int
	Delivered   int
	FailedFeeds []string
	Err         string
}
