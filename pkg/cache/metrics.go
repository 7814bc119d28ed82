package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_cache_hits_total",
		Help: "Total number of cache hits by keyspace",
	}, []string{"keyspace"})

	CacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_cache_misses_total",
		Help: "Total number of cache misses by keyspace",
	}, []string{"keyspace"})

	CacheSetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_cache_sets_total",
		Help: "Total number of cache sets by keyspace",
	}, []string{"keyspace"})

	CacheDeletesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_cache_deletes_total",
		Help: "Total number of cache deletes by keyspace",
	}, []string{"keyspace"})
)
