package service

import (
	"math"
	"sort"

	"xbasis/internal/domain/model"
)

// Observed defaults.
const (
	DefaultMinNotional     = 500_000.0
	DefaultMaxBasisPercent = 10.0
)

// Reject names the first filter a symbol failed.
type Reject int

const (
	Accepted Reject = iota
	RejectPrice
	RejectVolume
	RejectLiquidity
	RejectRange
)

func (r Reject) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case RejectPrice:
		return "price"
	case RejectVolume:
		return "volume"
	case RejectLiquidity:
		return "liquidity"
	case RejectRange:
		return "range"
	default:
		return "unknown"
	}
}

// Rules 基差过滤规则
type Rules struct {
	MinNotional     float64 // per side, volume * price
	MaxBasisPercent float64 // |basis_percent| upper bound, inclusive
}

// DefaultRules returns the 500k notional / 10% rules.
func DefaultRules() Rules {
	return Rules{MinNotional: DefaultMinNotional, MaxBasisPercent: DefaultMaxBasisPercent}
}

// Basis returns futures - spot and the same expressed as a percentage of spot.
// spot must be > 0.
func Basis(spot, futures float64) (basis, percent float64) {
	basis = futures - spot
	percent = basis / spot * 100
	return basis, percent
}

// Check applies, in order, price validity, volume presence, liquidity and basis range.
func (r Rules) Check(spotPx, futuresPx, spotVol, futuresVol float64) Reject {
	if !(spotPx > 0) || !(futuresPx > 0) {
		return RejectPrice
	}
	if !(spotVol > 0) || !(futuresVol > 0) {
		return RejectVolume
	}
	if spotVol*spotPx < r.MinNotional || futuresVol*futuresPx < r.MinNotional {
		return RejectLiquidity
	}
	_, pct := Basis(spotPx, futuresPx)
	if math.Abs(pct) > r.MaxBasisPercent {
		return RejectRange
	}
	return Accepted
}

// Rank sorts by basis_percent descending. Equal percentages fall back to symbol
// ascending so identical inputs always yield identical order.
func Rank(tickers []model.TickerSnapshot) {
	sort.SliceStable(tickers, func(i, j int) bool {
		if tickers[i].BasisPercent != tickers[j].BasisPercent {
			return tickers[i].BasisPercent > tickers[j].BasisPercent
		}
		return tickers[i].Symbol < tickers[j].Symbol
	})
}
