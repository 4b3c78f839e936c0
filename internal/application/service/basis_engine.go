package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"xbasis/internal/domain/model"
	dsvc "xbasis/internal/domain/service"
	"xbasis/internal/metrics"
)

// ErrAllFeedsFailed 所有上游请求都失败，本周期没有任何可用结果
var ErrAllFeedsFailed = errors.New("all upstream feeds failed")

// Fetcher yields one cycle worth of feed data.
type Fetcher interface {
	Fetch(ctx context.Context) model.FeedSet
}

// BasisEngine 关联行情、计算基差、过滤并排序
// It holds no mutable state, so concurrent Compute calls are independent.
type BasisEngine struct {
	fetcher Fetcher
	rules   dsvc.Rules
	topK    int
	now     func() time.Time
}

type EngineOption func(*BasisEngine)

// WithTopK caps every snapshot to the k highest entries; k <= 0 disables the cap.
func WithTopK(k int) EngineOption {
	return func(e *BasisEngine) { e.topK = k }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *BasisEngine) { e.now = now }
}

func NewBasisEngine(fetcher Fetcher, rules dsvc.Rules, opts ...EngineOption) *BasisEngine {
	e := &BasisEngine{
		fetcher: fetcher,
		rules:   rules,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute runs one full cycle: fetch, join, filter, rank.
// It fails only when every upstream feed failed.
func (e *BasisEngine) Compute(ctx context.Context) (model.Snapshot, error) {
	feeds := e.fetcher.Fetch(ctx)
	now := e.now()
	if feeds.AllFailed() {
		metrics.ComputeTotal.WithLabelValues("failed").Inc()
		return model.Snapshot{Tickers: []model.TickerSnapshot{}, Timestamp: now, FailedFeeds: feeds.Failed}, ErrAllFeedsFailed
	}

	snap := e.Build(feeds, now)
	metrics.ComputeTotal.WithLabelValues("ok").Inc()
	metrics.SnapshotSize.Set(float64(len(snap.Tickers)))
	log.Info().
		Int("candidates", snap.Candidates).
		Int("count", len(snap.Tickers)).
		Strs("failed_feeds", feeds.Failed).
		Msg("basis computed")
	return snap, nil
}

// Build is the deterministic part of Compute.
func (e *BasisEngine) Build(feeds model.FeedSet, now time.Time) model.Snapshot {
	tickers := make([]model.TickerSnapshot, 0, len(feeds.Active))
	candidates := 0

	// a whole volume feed already failed and was logged; per-symbol misses are expected
	skipLevel := zerolog.WarnLevel
	if slices.Contains(feeds.Failed, model.FeedSpotVolumes) || slices.Contains(feeds.Failed, model.FeedFuturesVolumes) {
		skipLevel = zerolog.DebugLevel
	}

	for sym := range feeds.Active {
		spot, okS := feeds.SpotPrices[sym]
		fut, okF := feeds.FuturesPrices[sym]
		if !okS || !okF {
			continue
		}
		candidates++

		t, reject, err := e.evaluate(sym, spot, fut, feeds)
		if err != nil {
			metrics.SymbolsRejectedTotal.WithLabelValues("error").Inc()
			log.WithLevel(skipLevel).Err(err).Str("symbol", sym).Msg("basis compute failed, symbol skipped")
			continue
		}
		if reject != dsvc.Accepted {
			metrics.SymbolsRejectedTotal.WithLabelValues(reject.String()).Inc()
			continue
		}
		t.Timestamp = now
		tickers = append(tickers, t)
	}

	dsvc.Rank(tickers)
	if e.topK > 0 && len(tickers) > e.topK {
		tickers = tickers[:e.topK]
	}

	return model.Snapshot{
		Tickers:     tickers,
		Timestamp:   now,
		Candidates:  candidates,
		FailedFeeds: feeds.Failed,
	}
}

func (e *BasisEngine) evaluate(sym string, spot, fut float64, feeds model.FeedSet) (model.TickerSnapshot, dsvc.Reject, error) {
	spotVol, ok := feeds.SpotVolumes[sym]
	if !ok {
		return model.TickerSnapshot{}, 0, errors.New("missing spot volume")
	}
	futVol, ok := feeds.FuturesVolumes[sym]
	if !ok {
		return model.TickerSnapshot{}, 0, errors.New("missing futures volume")
	}
	for _, v := range [...]float64{spot, fut, spotVol, futVol} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return model.TickerSnapshot{}, 0, fmt.Errorf("non-finite input %v", v)
		}
	}

	if r := e.rules.Check(spot, fut, spotVol, futVol); r != dsvc.Accepted {
		return model.TickerSnapshot{}, r, nil
	}

	basis, pct := dsvc.Basis(spot, fut)
	return model.TickerSnapshot{
		Symbol:        sym,
		SpotPrice:     spot,
		FuturesPrice:  fut,
		Basis:         basis,
		BasisPercent:  pct,
		SpotVolume:    spotVol,
		FuturesVolume: futVol,
	}, dsvc.Accepted, nil
}
