package markets

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// MetadataFetchDuration tracks metadata API fetch latency by endpoint.
	MetadataFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "polymarket_markets_metadata_fetch_duration_seconds",
		Help:    "Duration of market metadata fetches from the Gamma and CLOB APIs",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	// MetadataFetchErrorsTotal tracks metadata fetch failures by endpoint.
	MetadataFetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_markets_metadata_fetch_errors_total",
		Help: "Total number of metadata fetch errors",
	}, []string{"endpoint"})

	// MarketCacheHitsTotal tracks resolver cache hits.
	MarketCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_markets_cache_hits_total",
		Help: "Total number of resolved market cache hits",
	})

	// MarketCacheMissesTotal tracks resolver cache misses.
	MarketCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_markets_cache_misses_total",
		Help: "Total number of resolved market cache misses",
	})
)
