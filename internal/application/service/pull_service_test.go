package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"xbasis/internal/domain/model"
)

type computerFunc func(ctx context.Context) (model.Snapshot, error)

func (f computerFunc) Compute(ctx context.Context) (model.Snapshot, error) { return f(ctx) }

func TestPullServiceSuccess(t *testing.T) {
	calls := 0
	svc := NewPullService(computerFunc(func(ctx context.Context) (model.Snapshot, error) {
		calls++
		return model.Snapshot{
			Timestamp: fixedNow,
			Tickers: []model.TickerSnapshot{
				{Symbol: "AUSDT", SpotPrice: 100, FuturesPrice: 101, Basis: 1, BasisPercent: 1, Timestamp: fixedNow},
				{Symbol: "BUSDT", SpotPrice: 100, FuturesPrice: 100.5, Basis: 0.5, BasisPercent: 0.5, Timestamp: fixedNow},
			},
		}, nil
	}), time.Second)

	env := svc.Basis(context.Background(), 0)
	if !env.Success || env.TotalCount != 2 || len(env.Data) != 2 {
		t.Fatalf("unexpected envelope: %+v", env)
	}

	env = svc.Basis(context.Background(), 1)
	if env.TotalCount != 1 || env.Data[0].Symbol != "AUSDT" {
		t.Fatalf("limit not applied: %+v", env)
	}
	if calls != 2 {
		t.Errorf("expected a fresh compute per request, got %d calls", calls)
	}
}

func TestPullServiceFailureEnvelope(t *testing.T) {
	svc := NewPullService(computerFunc(func(ctx context.Context) (model.Snapshot, error) {
		return model.Snapshot{Tickers: []model.TickerSnapshot{}}, ErrAllFeedsFailed
	}), time.Second)

	env := svc.Basis(context.Background(), 0)
	if env.Success {
		t.Fatal("expected success=false")
	}
	if env.Data == nil || len(env.Data) != 0 || env.TotalCount != 0 {
		t.Errorf("expected empty data, got %+v", env.Data)
	}
	if env.Error == "" {
		t.Error("expected error text")
	}
}

func TestPullServiceBoundsCall(t *testing.T) {
	svc := NewPullService(computerFunc(func(ctx context.Context) (model.Snapshot, error) {
		if _, ok := ctx.Deadline(); !ok {
			return model.Snapshot{}, errors.New("no deadline")
		}
		return model.Snapshot{Timestamp: fixedNow}, nil
	}), 10*time.Millisecond)

	env := svc.Basis(context.Background(), 0)
	if !env.Success {
		t.Fatalf("expected a deadline on the compute context: %s", env.Error)
	}
}
