package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xbasis/internal/domain/model"
)

type fakeSource struct {
	active         map[string]struct{}
	spotPrices     map[string]float64
	spotVolumes    map[string]float64
	futuresPrices  map[string]float64
	futuresVolumes map[string]float64

	errs  map[string]error
	block map[string]bool // wait for ctx cancellation
	calls atomic.Int32
}

func (f *fakeSource) hit(ctx context.Context, feed string) error {
	f.calls.Add(1)
	if f.block[feed] {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.errs[feed]
}

func (f *fakeSource) ActiveSymbols(ctx context.Context) (map[string]struct{}, error) {
	if err := f.hit(ctx, model.FeedActiveSymbols); err != nil {
		return nil, err
	}
	return f.active, nil
}

func (f *fakeSource) SpotPrices(ctx context.Context) (map[string]float64, error) {
	if err := f.hit(ctx, model.FeedSpotPrices); err != nil {
		return nil, err
	}
	return f.spotPrices, nil
}

func (f *fakeSource) SpotVolumes(ctx context.Context) (map[string]float64, error) {
	if err := f.hit(ctx, model.FeedSpotVolumes); err != nil {
		return nil, err
	}
	return f.spotVolumes, nil
}

func (f *fakeSource) FuturesPrices(ctx context.Context) (map[string]float64, error) {
	if err := f.hit(ctx, model.FeedFuturesPrices); err != nil {
		return nil, err
	}
	return f.futuresPrices, nil
}

func (f *fakeSource) FuturesVolumes(ctx context.Context) (map[string]float64, error) {
	if err := f.hit(ctx, model.FeedFuturesVolumes); err != nil {
		return nil, err
	}
	return f.futuresVolumes, nil
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		active:         map[string]struct{}{"BTCUSDT": {}, "ETHUSDT": {}},
		spotPrices:     map[string]float64{"BTCUSDT": 100, "ETHUSDT": 50},
		spotVolumes:    map[string]float64{"BTCUSDT": 10_000, "ETHUSDT": 20_000},
		futuresPrices:  map[string]float64{"BTCUSDT": 101, "ETHUSDT": 50.5},
		futuresVolumes: map[string]float64{"BTCUSDT": 10_000, "ETHUSDT": 20_000},
		errs:           map[string]error{},
		block:          map[string]bool{},
	}
}

func TestFetcherAllFeedsSucceed(t *testing.T) {
	src := newFakeSource()
	f := NewMarketDataFetcher(src, time.Second)

	set := f.Fetch(context.Background())

	assert.Equal(t, int32(5), src.calls.Load())
	assert.Empty(t, set.Failed)
	assert.Len(t, set.Active, 2)
	assert.Equal(t, 101.0, set.FuturesPrices["BTCUSDT"])
	assert.Equal(t, 20_000.0, set.SpotVolumes["ETHUSDT"])
}

func TestFetcherIsolatesFeedFailure(t *testing.T) {
	src := newFakeSource()
	src.errs[model.FeedSpotPrices] = errors.New("http 503")
	f := NewMarketDataFetcher(src, time.Second)

	set := f.Fetch(context.Background())

	require.Equal(t, []string{model.FeedSpotPrices}, set.Failed)
	assert.NotNil(t, set.SpotPrices)
	assert.Empty(t, set.SpotPrices)
	// other feeds unaffected
	assert.Len(t, set.FuturesPrices, 2)
	assert.Len(t, set.Active, 2)
	assert.False(t, set.AllFailed())
}

func TestFetcherBoundsStalledFeed(t *testing.T) {
	src := newFakeSource()
	src.block[model.FeedFuturesVolumes] = true
	f := NewMarketDataFetcher(src, 50*time.Millisecond)

	start := time.Now()
	set := f.Fetch(context.Background())

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, []string{model.FeedFuturesVolumes}, set.Failed)
	assert.Len(t, set.SpotPrices, 2)
}

func TestFetcherAllFailed(t *testing.T) {
	src := newFakeSource()
	for _, feed := range model.AllFeeds {
		src.errs[feed] = errors.New("down")
	}
	f := NewMarketDataFetcher(src, time.Second)

	set := f.Fetch(context.Background())

	assert.True(t, set.AllFailed())
	assert.Equal(t, model.AllFeeds, set.Failed)
}

func TestFetcherNilMapNormalised(t *testing.T) {
	src := newFakeSource()
	src.spotVolumes = nil
	f := NewMarketDataFetcher(src, time.Second)

	set := f.Fetch(context.Background())

	assert.NotNil(t, set.SpotVolumes)
	assert.Empty(t, set.Failed)
}
