package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	StoreDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "polymarket_storage_store_duration_seconds",
		Help:    "Time taken to journal an execution record",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"backend"})

	StoreErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_storage_store_errors_total",
		Help: "Total number of failed journal writes by backend",
	}, []string{"backend"})
)
