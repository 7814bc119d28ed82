package clob

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// SellOrdersTotal counts sell submissions by result.
	SellOrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_clob_sell_orders_total",
		Help: "Total number of sell orders submitted by result (live, matched, rejected, error)",
	}, []string{"result"})

	// SubmitDuration tracks order submission latency.
	SubmitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polymarket_clob_submit_duration_seconds",
		Help:    "Duration of POST /order requests",
		Buckets: prometheus.DefBuckets,
	})
)
