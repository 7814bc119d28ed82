package chain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// TransactionsTotal counts submitted transactions by kind and result.
	TransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_chain_transactions_total",
		Help: "Total number of transactions by kind (approve, split) and result",
	}, []string{"kind", "result"})

	// ReceiptWaitDuration tracks time spent waiting for receipts.
	ReceiptWaitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "polymarket_chain_receipt_wait_seconds",
		Help:    "Time spent waiting for a transaction receipt",
		Buckets: []float64{1, 3, 5, 10, 20, 30, 60, 120},
	}, []string{"kind"})
)
