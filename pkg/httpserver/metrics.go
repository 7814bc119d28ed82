package httpserver

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_http_requests_total",
		Help: "Total number of API requests by route and status code",
	}, []string{"route", "code"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "polymarket_http_request_duration_seconds",
		Help:    "API request latency by route",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 180},
	}, []string{"route"})
)

func observe(route string, code int, start time.Time) {
	RequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}
