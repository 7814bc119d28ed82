package lock

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	LocksAcquiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_lock_acquired_total",
		Help: "Total number of account locks acquired by backend",
	}, []string{"backend"})

	LockWaitTimeoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_lock_wait_timeouts_total",
		Help: "Total number of lock waits that ended before acquisition",
	}, []string{"backend"})
)
