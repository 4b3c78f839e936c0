package model

import (
	"math"
	"time"
)

// Push message types.
const (
	EnvelopeInitial = "initial_data"
	EnvelopeUpdate  = "basis_update"
)

// TimeLayout is the wire format for every timestamp field.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// TickerView is the wire form of a TickerSnapshot.
type TickerView struct {
	Symbol        string  `json:"symbol"`
	SpotPrice     float64 `json:"spot_price"`
	FuturesPrice  float64 `json:"futures_price"`
	Basis         float64 `json:"basis"`
	BasisPercent  float64 `json:"basis_percent"`
	SpotVolume    float64 `json:"spot_volume"`
	FuturesVolume float64 `json:"futures_volume"`
	LastUpdate    string  `json:"last_update"`
}

// PushEnvelope 推送给订阅者的消息
type PushEnvelope struct {
	Type       string       `json:"type"`
	Timestamp  string       `json:"timestamp"`
	Data       []TickerView `json:"data"`
	TotalCount int          `json:"total_count"`
}

// PullEnvelope 同步查询的返回
type PullEnvelope struct {
	Success    bool         `json:"success"`
	Timestamp  string       `json:"timestamp"`
	Data       []TickerView `json:"data"`
	TotalCount int          `json:"total_count"`
	Error      string       `json:"error,omitempty"`
}

// NewPushEnvelope builds a push message from tickers.
func NewPushEnvelope(kind string, ts time.Time, tickers []TickerSnapshot) PushEnvelope {
	data := Views(tickers)
	return PushEnvelope{
		Type:       kind,
		Timestamp:  ts.Format(TimeLayout),
		Data:       data,
		TotalCount: len(data),
	}
}

// NewPullEnvelope builds a successful pull response.
func NewPullEnvelope(ts time.Time, tickers []TickerSnapshot) PullEnvelope {
	data := Views(tickers)
	return PullEnvelope{
		Success:    true,
		Timestamp:  ts.Format(TimeLayout),
		Data:       data,
		TotalCount: len(data),
	}
}

// FailedPullEnvelope builds a success=false response with empty data.
func FailedPullEnvelope(ts time.Time, err error) PullEnvelope {
	env := PullEnvelope{
		Success:   false,
		Timestamp: ts.Format(TimeLayout),
		Data:      []TickerView{},
	}
	if err != nil {
		env.Error = err.Error()
	}
	return env
}

// Views converts tickers to their wire form. The result is never nil.
func Views(tickers []TickerSnapshot) []TickerView {
	out := make([]TickerView, 0, len(tickers))
	for _, t := range tickers {
		out = append(out, t.View())
	}
	return out
}

// View rounds prices and basis to 4 places, percent and volumes to 2.
func (t TickerSnapshot) View() TickerView {
	return TickerView{
		Symbol:        t.Symbol,
		SpotPrice:     round(t.SpotPrice, 4),
		FuturesPrice:  round(t.FuturesPrice, 4),
		Basis:         round(t.Basis, 4),
		BasisPercent:  round(t.BasisPercent, 2),
		SpotVolume:    round(t.SpotVolume, 2),
		FuturesVolume: round(t.FuturesVolume, 2),
		LastUpdate:    t.Timestamp.Format(TimeLayout),
	}
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
