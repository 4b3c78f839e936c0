package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"xbasis/internal/application/port"
	"xbasis/internal/domain/model"
	"xbasis/internal/metrics"
)

// DefaultFeedTimeout bounds every upstream call when none is configured.
const DefaultFeedTimeout = 10 * time.Second

// MarketDataFetcher 并发抓取一个周期需要的全部行情
// Every feed runs in its own goroutine with its own timeout; a failed feed
// contributes an empty map and never cancels the others.
type MarketDataFetcher struct {
	source  port.MarketDataSource
	timeout time.Duration
}

func NewMarketDataFetcher(source port.MarketDataSource, timeout time.Duration) *MarketDataFetcher {
	if timeout <= 0 {
		timeout = DefaultFeedTimeout
	}
	return &MarketDataFetcher{source: source, timeout: timeout}
}

// Timeout returns the per-feed bound.
func (f *MarketDataFetcher) Timeout() time.Duration { return f.timeout }

// Fetch waits for all feeds to finish (or time out) before returning.
func (f *MarketDataFetcher) Fetch(ctx context.Context) model.FeedSet {
	set := model.NewFeedSet()

	var (
		mu     sync.Mutex
		failed = make(map[string]bool, len(model.AllFeeds))
	)
	fail := func(feed string, err error) {
		metrics.FeedFailuresTotal.WithLabelValues(feed).Inc()
		log.Error().Err(err).Str("feed", feed).Msg("feed fetch failed")
		mu.Lock()
		failed[feed] = true
		mu.Unlock()
	}

	var g errgroup.Group

	g.Go(func() error {
		m, err := call(ctx, f.timeout, model.FeedActiveSymbols, f.source.ActiveSymbols)
		if err != nil {
			fail(model.FeedActiveSymbols, err)
			return nil
		}
		set.Active = m
		return nil
	})

	floatFeeds := []struct {
		name string
		fn   func(context.Context) (map[string]float64, error)
		dst  *map[string]float64
	}{
		{model.FeedSpotPrices, f.source.SpotPrices, &set.SpotPrices},
		{model.FeedSpotVolumes, f.source.SpotVolumes, &set.SpotVolumes},
		{model.FeedFuturesPrices, f.source.FuturesPrices, &set.FuturesPrices},
		{model.FeedFuturesVolumes, f.source.FuturesVolumes, &set.FuturesVolumes},
	}
	for _, feed := range floatFeeds {
		feed := feed
		g.Go(func() error {
			m, err := call(ctx, f.timeout, feed.name, feed.fn)
			if err != nil {
				fail(feed.name, err)
				return nil
			}
			*feed.dst = m
			return nil
		})
	}

	_ = g.Wait()

	// keep the canonical feed order in Failed
	for _, name := range model.AllFeeds {
		if failed[name] {
			set.Failed = append(set.Failed, name)
		}
	}
	return set
}

// call runs one acquisition under its own deadline. A nil map from a
// successful call is normalised to an empty one.
func call[M ~map[string]V, V any](ctx context.Context, timeout time.Duration, feed string, fn func(context.Context) (M, error)) (M, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	m, err := fn(cctx)
	metrics.FeedDuration.WithLabelValues(feed).Observe(time.Since(start).Seconds())
	if err != nil {
		return make(M), err
	}
	if m == nil {
		m = make(M)
	}
	return m, nil
}
