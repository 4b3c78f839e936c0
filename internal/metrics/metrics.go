package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Fetch
	FeedFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xbasis_feed_failures_total",
		Help: "Upstream feed acquisitions that failed, by feed",
	}, []string{"feed"})
	FeedDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xbasis_feed_duration_seconds",
		Help:    "Upstream feed acquisition latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"feed"})

	// Compute
	ComputeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xbasis_compute_total",
		Help: "Basis computations, by result (ok/failed)",
	}, []string{"result"})
	SymbolsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xbasis_symbols_rejected_total",
		Help: "Candidate symbols excluded from a snapshot, by reason",
	}, []string{"reason"})
	SnapshotSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "xbasis_snapshot_size",
		Help: "Number of tickers in the latest snapshot",
	})

	// Broadcast
	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "xbasis_subscribers",
		Help: "Registered push subscribers",
	})
	BroadcastCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xbasis_broadcast_cycles_total",
		Help: "Broadcast cycles, by result (sent/idle/failed)",
	}, []string{"result"})
	BroadcastDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "xbasis_broadcast_duration_seconds",
		Help:    "Duration of a broadcast cycle including compute and fan-out",
		Buckets: prometheus.DefBuckets,
	})
	SendFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xbasis_send_failures_total",
		Help: "Subscriber sends that failed or timed out",
	})
	RelayFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xbasis_relay_failures_total",
		Help: "Relay publish failures, by relay",
	}, []string{"relay"})

	// Pull
	PullRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xbasis_pull_requests_total",
		Help: "On-demand basis requests, by result (ok/failed)",
	}, []string{"result"})
)
